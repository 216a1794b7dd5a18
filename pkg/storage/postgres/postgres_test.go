package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"bookstories/pkg/storage"
	"bookstories/pkg/storage/storagetest"
)

const defaultPostgresPass = "some_pass"
const defaultPostgresPort = "5432"

func postgresConf() Config {
	pass := os.Getenv("POSTGRES_PASSWORD")
	if pass == "" {
		pass = defaultPostgresPass
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = defaultPostgresPort
	}

	return Config{
		User:     "postgres",
		Password: pass,
		Host:     "localhost",
		Port:     port,
		DBName:   "comments",
	}
}

func storageConnect(ctx context.Context) (*Store, error) {
	conf := postgresConf()
	db, err := New(ctx, conf.ConString())
	if err != nil {
		return nil, storage.ErrConnectDB
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, storage.ErrDBNotResponding
	}

	return db, nil
}

// truncateComments restores the original state of DB for further testing.
func truncateComments(db *Store) error {
	_, err := db.db.Exec(context.Background(), "TRUNCATE TABLE comments")
	return err
}

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func TestStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	probe, err := storageConnect(ctx)
	if err != nil {
		t.Skipf("postgres test instance unavailable: %v", err)
	}
	if err := probe.Init(ctx); err != nil {
		probe.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	probe.Close()

	storagetest.Run(t, func(t *testing.T) storage.Storage {
		db, err := storageConnect(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(func() {
			if err := truncateComments(db); err != nil {
				t.Errorf("unexpected error clearing comments table: %v", err)
			}
			db.Close()
		})

		return db
	})
}

func TestConfig_IsValid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{
			name: "valid config",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
				DBName:   "test",
			},
			want: true,
		},
		{
			name: "empty config",
			cfg:  Config{},
			want: false,
		},
		{
			name: "config with empty DBName",
			cfg: Config{
				User:     "user",
				Password: "password",
				Host:     "localhost",
				Port:     "5432",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsValid(); got != tt.want {
				t.Errorf("want valid %v, got %v", tt.want, got)
			}
		})
	}
}

func TestConfig_ConString(t *testing.T) {
	cfg := Config{User: "postgres", Password: "p@ss word", Host: "db", Port: "5432", DBName: "comments", SSLMode: "disable"}

	want := "postgres://postgres:p%40ss%20word@db:5432/comments?sslmode=disable"
	if got := cfg.ConString(); got != want {
		t.Errorf("want connection string %q, got %q", want, got)
	}

	if s := cfg.String(); strings.Contains(s, "p@ss") {
		t.Errorf("want password masked, got %s", s)
	}
}
