// Command rotate-master-key generates a new master key, rewraps every
// active DEK onto it via internal/encryption.MasterKeyRotation, and
// persists the new key in Vault. Grounded on cmd/migrate's flag-based
// CLI shape (itself grounded on cuemby-warren/cmd/warren-migrate).
package main

import (
	"context"
	"flag"
	"log"

	"github.com/suleymanmyradov/authcore/internal/encryption"
	"github.com/suleymanmyradov/authcore/third_party/database"
	"github.com/suleymanmyradov/authcore/third_party/vault"
)

var (
	dbHost     = flag.String("db-host", "localhost", "Postgres host")
	dbPort     = flag.Int("db-port", 5432, "Postgres port")
	dbUser     = flag.String("db-user", "", "Postgres user")
	dbPassword = flag.String("db-password", "", "Postgres password")
	dbName     = flag.String("db-name", "", "Postgres database name")
	dbSSLMode  = flag.String("db-sslmode", "disable", "Postgres sslmode")

	vaultAddr  = flag.String("vault-addr", "", "Vault address")
	vaultToken = flag.String("vault-token", "", "Vault token")
	vaultMount = flag.String("vault-mount", "secret", "Vault KV-v2 mount path")

	dryRun = flag.Bool("dry-run", false, "Report how many DEKs would be rotated without writing anything")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("authcore master-key rotation")
	log.Println("=============================")

	ctx := context.Background()

	v, err := vault.NewClient(vault.Config{Addr: *vaultAddr, Token: *vaultToken, MountPath: *vaultMount})
	if err != nil {
		log.Fatalf("failed to construct vault client: %v", err)
	}

	oldKeyBytes, found, err := v.GetMasterKey(ctx)
	if err != nil {
		log.Fatalf("failed to read current master key: %v", err)
	}
	if !found {
		log.Fatalf("no master key found in vault; nothing to rotate")
	}
	oldKey, err := encryption.NewMasterKeyFromBytes(oldKeyBytes)
	if err != nil {
		log.Fatalf("stored master key is invalid: %v", err)
	}

	newKey, err := encryption.GenerateMasterKey()
	if err != nil {
		log.Fatalf("failed to generate new master key: %v", err)
	}

	db, err := database.NewPostgresConnection(database.PostgresConfig{
		Host:           *dbHost,
		Port:           *dbPort,
		User:           *dbUser,
		Password:       *dbPassword,
		DBName:         *dbName,
		SSLMode:        *dbSSLMode,
		MaxConnections: 5,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	keys := encryption.NewKeyRepository(db)
	rotation := encryption.NewMasterKeyRotation(v, keys)

	if *dryRun {
		active, err := keys.ListActive(ctx)
		if err != nil {
			log.Fatalf("failed to list active keys: %v", err)
		}
		log.Printf("would rotate %d active DEK(s)", len(active))
		return
	}

	result, err := rotation.RotateMasterKey(ctx, oldKey, newKey)
	if err != nil {
		log.Fatalf("master key rotation failed: %v", err)
	}
	if len(result.Failed) > 0 {
		log.Fatalf("rotated %d DEK(s), but %d failed: %v (old master key left in place)", result.RotatedCount, len(result.Failed), result.Failed)
	}

	// Every active DEK now rewraps under newKey; only now is it safe to
	// make newKey the key Vault reports for future GetMasterKey calls.
	if err := v.StoreMasterKey(ctx, newKey.Bytes()); err != nil {
		log.Fatalf("rotated %d DEK(s) but failed to persist new master key: %v", result.RotatedCount, err)
	}

	log.Printf("master key rotated successfully: %d DEK(s) rewrapped", result.RotatedCount)
}
