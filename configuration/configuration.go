package configuration

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/bartossh/Multisigner/coordinator"
	"github.com/bartossh/Multisigner/keystore"
	"github.com/bartossh/Multisigner/ledgerclient"
	"github.com/bartossh/Multisigner/ledgerserver"
	"github.com/bartossh/Multisigner/localcache"
	"github.com/bartossh/Multisigner/logging"
	"github.com/bartossh/Multisigner/natsclient"
	"github.com/bartossh/Multisigner/repomongo"
	"github.com/bartossh/Multisigner/repository"
	"github.com/bartossh/Multisigner/telemetry"
	"github.com/bartossh/Multisigner/zincadapter"
)

// Storage backends of the ledger node.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

// Environment variables overriding secrets of the configuration file.
const (
	EnvDBConn             = "MULTISIG_DB_CONN"
	EnvMongoConn          = "MULTISIG_MONGO_CONN"
	EnvNatsToken          = "MULTISIG_NATS_TOKEN"
	EnvKeystorePassphrase = "MULTISIG_KEYSTORE_PASSPHRASE"
)

var ErrUnknownStorage = errors.New("unknown storage backend")

// Storage selects the ledger node storage backend.
type Storage struct {
	Backend string `yaml:"backend"` // One of memory, postgres, mongo. Memory if not set.
}

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	Coordinator  coordinator.Config  `yaml:"coordinator"`
	LedgerClient ledgerclient.Config `yaml:"ledger_client"`
	Server       ledgerserver.Config `yaml:"server"`
	Storage      Storage             `yaml:"storage"`
	Database     repository.DBConfig `yaml:"database"`
	Mongo        repomongo.DBConfig  `yaml:"mongo"`
	Nats         natsclient.Config   `yaml:"nats"`
	Cache        localcache.Config   `yaml:"cache"`
	Keystore     keystore.Config     `yaml:"keystore"`
	Telemetry    telemetry.Config    `yaml:"telemetry"`
	Logging      logging.Config      `yaml:"logging"`
	ZincLogger   zincadapter.Config  `yaml:"zinc_logger"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var main Configuration
	err = yaml.Unmarshal(buf, &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	if main.Storage.Backend == "" {
		main.Storage.Backend = StorageMemory
	}
	switch main.Storage.Backend {
	case StorageMemory, StoragePostgres, StorageMongo:
	default:
		return Configuration{}, errors.Join(ErrUnknownStorage, fmt.Errorf("in file %q: %s", path, main.Storage.Backend))
	}

	return main, nil
}

// LoadEnv loads the env file if it exists and overrides secrets with the environment variables that are set.
func (c *Configuration) LoadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("env file %q: %w", path, err)
		}
	}
	override(&c.Database.ConnStr, EnvDBConn)
	override(&c.Mongo.ConnStr, EnvMongoConn)
	override(&c.Nats.Token, EnvNatsToken)
	override(&c.Keystore.Passphrase, EnvKeystorePassphrase)
	return nil
}

func override(field *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*field = v
	}
}
