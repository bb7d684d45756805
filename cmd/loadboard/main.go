package main

import (
	bidhandler "loadboard/internal/bids/handler"
	bidrepository "loadboard/internal/bids/repository"
	bidservice "loadboard/internal/bids/service"
	bidvalidator "loadboard/internal/bids/validator"
	bookinghandler "loadboard/internal/bookings/handler"
	bookingrepository "loadboard/internal/bookings/repository"
	bookingservice "loadboard/internal/bookings/service"
	bookingvalidator "loadboard/internal/bookings/validator"
	loadhandler "loadboard/internal/loads/handler"
	loadrepository "loadboard/internal/loads/repository"
	loadservice "loadboard/internal/loads/service"
	loadvalidator "loadboard/internal/loads/validator"
	transporterhandler "loadboard/internal/transporters/handler"
	transporterrepository "loadboard/internal/transporters/repository"
	transporterservice "loadboard/internal/transporters/service"
	transportervalidator "loadboard/internal/transporters/validator"
	"loadboard/pkg/app"
	"loadboard/pkg/config"
	"loadboard/pkg/events"
	kafka_config "loadboard/pkg/kafka/config"
)

const ServiceName = "loadboard"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	publisher := initPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	cfg.Log.Info("Starting Loadboard service")

	transporterService, loadService, bidService, bookingService := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		transporterhandler.NewTransporterHandler(transporterService, cfg.Log),
		loadhandler.NewLoadHandler(loadService, cfg.Log),
		bidhandler.NewBidHandler(bidService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return events.NewNopPublisher()
	}

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	publisher, err := events.NewKafkaPublisher(kafkaCfg, ServiceName, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Kafka publisher", "error", err)
	}
	return publisher
}

// initServices wires the domain services bottom-up. The loads service
// reads allocations through the bookings repository and rejects pending
// bids through the bids repository; the services themselves depend only
// on interfaces.
func initServices(cfg *config.Config, publisher events.Publisher) (
	transporterservice.TransporterService,
	loadservice.LoadService,
	bidservice.BidService,
	bookingservice.BookingService,
) {
	transporterRepo := transporterrepository.NewMongoTransporterRepository(cfg)
	capacityRepo := transporterrepository.NewMongoCapacityRepository(cfg)
	loadRepo := loadrepository.NewMongoLoadRepository(cfg)
	bidRepo := bidrepository.NewMongoBidRepository(cfg)
	bookingRepo := bookingrepository.NewMongoBookingRepository(cfg)
	lockRepo := bookingrepository.NewAllocationLockRepository(cfg)

	transporterService := transporterservice.NewTransporterService(
		transporterRepo,
		capacityRepo,
		transportervalidator.NewTransporterValidator(cfg.Log),
		cfg,
	)

	loadService := loadservice.NewLoadService(
		loadRepo,
		bookingRepo,
		bidRepo,
		loadvalidator.NewLoadValidator(cfg.Log),
		publisher,
		cfg,
	)

	bidService := bidservice.NewBidService(
		bidRepo,
		loadService,
		transporterService,
		bidvalidator.NewBidValidator(cfg.Log),
		publisher,
		cfg,
	)

	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		lockRepo,
		bidService,
		loadService,
		transporterService,
		bookingvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Loadboard services initialized", "database", cfg.MongoDatabaseName)
	return transporterService, loadService, bidService, bookingService
}
