// Package mongostore stores notification deliveries, in-app rows and
// preferences in MongoDB using mongo-driver/v2.
//
//	db, err := mongostore.ConnectDatabase(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := mongostore.New(db, notifications.DefaultTableNames())
//	if err := store.EnsureIndexes(ctx); err != nil {
//	    return err
//	}
//
// Each table name from notifications.TableNames becomes a collection name.
// Document ids are the row ids generated by the registry.
package mongostore
