package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
)

func NewMongoClient(config *MongoConfig) (*Client, error) {
	return NewClient(config)
}

var Module = fx.Options(
	fx.Provide(NewMongoClient),
	fx.Invoke(RegisterLifecycle),
)

func RegisterLifecycle(lc fx.Lifecycle, client *Client) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			// Mongo ne porte que les brouillons de formulaire : son absence
			// ne bloque pas le démarrage du registre
			if err := client.Ping(timeoutCtx); err != nil {
				fmt.Printf("[MONGODB] ⚠️  MongoDB non disponible - continuera sans brouillons: %v\n", err)
				return nil
			}

			fmt.Printf("[MONGODB] ✅ MongoDB connecté et opérationnel\n")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close(ctx)
		},
	})
}
