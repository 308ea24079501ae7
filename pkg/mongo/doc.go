// Package mongo connects to MongoDB for the audit record storage.
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	db, err := mongo.ConnectDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	storage := audit.NewMongoStorage(db, "")
//
// Connect retries with linear backoff and honours context cancellation.
// Failures match ErrFailedToConnectToMongo with errors.Is.
package mongo
