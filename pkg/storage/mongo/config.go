package mongo

import (
	"fmt"
	"net/url"
	"os"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

type Config struct {
	Host   string
	Port   string
	DBName string
	User   string
	Pass   string
}

// NewConfig reads the connection settings from MONGO_* environment variables.
func NewConfig() (*Config, error) {
	conf := &Config{
		Host:   os.Getenv("MONGO_HOST"),
		Port:   os.Getenv("MONGO_PORT"),
		DBName: os.Getenv("MONGO_DB_NAME"),
		User:   os.Getenv("MONGO_USER"),
		Pass:   os.Getenv("MONGO_PASS"),
	}

	for name, v := range map[string]string{
		"MONGO_HOST":    conf.Host,
		"MONGO_PORT":    conf.Port,
		"MONGO_DB_NAME": conf.DBName,
	} {
		if v == "" {
			return nil, fmt.Errorf("%w: %s", ErrConfParamMissing, name)
		}
	}

	return conf, nil
}

func (c *Config) conString() string {
	u := url.URL{Scheme: "mongodb", Host: c.Host + ":" + c.Port, Path: "/"}
	if c.User != "" && c.Pass != "" {
		u.User = url.UserPassword(c.User, c.Pass)
	}
	return u.String()
}

func (c *Config) Options() *options.ClientOptions {
	return options.Client().ApplyURI(c.conString())
}
