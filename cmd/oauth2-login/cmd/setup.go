package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	oauth "github.com/giantswarm/oauth-client"
	"github.com/giantswarm/oauth-client/instrumentation"
	"github.com/giantswarm/oauth-client/providers"
	"github.com/giantswarm/oauth-client/providers/dex"
	"github.com/giantswarm/oauth-client/providers/github"
	"github.com/giantswarm/oauth-client/providers/google"
	"github.com/giantswarm/oauth-client/providers/oidc"
	"github.com/giantswarm/oauth-client/security"
	"github.com/giantswarm/oauth-client/storage"
	"github.com/giantswarm/oauth-client/storage/file"
	"github.com/giantswarm/oauth-client/storage/valkey"
	"github.com/giantswarm/oauth-client/token"
)

const (
	// EnvStorePassphrase enables encryption of stored tokens
	EnvStorePassphrase = "OAUTH_STORE_PASSPHRASE"

	// EnvValkeyPassword authenticates against Valkey
	EnvValkeyPassword = "OAUTH_VALKEY_PASSWORD"
)

// options are the command line settings shared by all commands.
type options struct {
	Provider    string
	Issuer      string
	ConnectorID string

	StoreDir    string
	StoreFormat string
	ValkeyAddr  string
	Key         string
}

func defaultOptions() options {
	dir := ".oauth2-login"
	if cfgDir, err := os.UserConfigDir(); err == nil {
		dir = filepath.Join(cfgDir, "oauth2-login")
	}
	return options{StoreDir: dir, StoreFormat: string(token.FormatJSON)}
}

// session is everything a command needs to talk to the authorization server.
type session struct {
	cfg    *oauth.Config
	preset providers.Preset
	store  storage.TokenStore
	key    string
	inst   *instrumentation.Instrumentation
	close  func()
}

// loadConfig merges the config file, OAUTH_* variables and the provider preset.
func loadConfig(ctx context.Context, path string, o options, logger *slog.Logger) (*oauth.Config, providers.Preset, error) {
	cfg := &oauth.Config{}
	if path != "" {
		loaded, err := oauth.LoadConfigFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug("Config file not found, using environment only", "path", path)
		default:
			return nil, providers.Preset{}, err
		}
	}

	cfg, err := oauth.ConfigFromEnv(cfg)
	if err != nil {
		return nil, providers.Preset{}, err
	}

	preset, err := resolvePreset(ctx, o, logger)
	if err != nil {
		return nil, providers.Preset{}, err
	}
	if preset.Name != "" {
		preset.Apply(cfg)
		logger.Debug("Applied provider preset", "provider", preset.Name)
	}

	cfg.Logger = logger
	return cfg, preset, nil
}

func resolvePreset(ctx context.Context, o options, logger *slog.Logger) (providers.Preset, error) {
	switch o.Provider {
	case "":
		return providers.Preset{}, nil
	case google.Name:
		return google.Preset(), nil
	case github.Name:
		return github.Preset(), nil
	case dex.Name:
		dc := oidc.NewDiscoveryClient(nil, 0, logger)
		return dex.Preset(ctx, dc, dex.Config{IssuerURL: o.Issuer, ConnectorID: o.ConnectorID})
	case "oidc":
		if o.Issuer == "" {
			return providers.Preset{}, errors.New("--issuer is required for the oidc provider")
		}
		return oidc.NewDiscoveryClient(nil, 0, logger).Preset(ctx, o.Issuer)
	default:
		return providers.Preset{}, fmt.Errorf("unknown provider %q", o.Provider)
	}
}

// openStore opens the file or Valkey store. A passphrase in
// OAUTH_STORE_PASSPHRASE encrypts stored tokens with a key derived per client.
func openStore(cfg *oauth.Config, o options, inst *instrumentation.Instrumentation, logger *slog.Logger) (storage.TokenStore, func(), error) {
	if pass := os.Getenv(EnvStorePassphrase); pass != "" {
		key, err := security.KeyFromPassphrase(pass, cfg.ClientID)
		if err != nil {
			return nil, nil, err
		}
		cfg.Security.EncryptionKey = key
	}
	enc, err := security.NewEncryptor(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	format := token.Format(o.StoreFormat)
	if o.ValkeyAddr != "" {
		vs, err := valkey.New(valkey.Config{
			Address:   o.ValkeyAddr,
			Password:  os.Getenv(EnvValkeyPassword),
			Format:    format,
			Encryptor: enc,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage.Instrument(vs, "valkey", inst), vs.Close, nil
	}

	fstore, err := file.New(file.Config{
		Dir:       o.StoreDir,
		Format:    format,
		Encryptor: enc,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return storage.Instrument(fstore, "file", inst), func() {}, nil
}

func newSession(ctx context.Context) (*session, error) {
	logger := slog.Default()

	cfg, preset, err := loadConfig(ctx, configFile, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName:    "oauth2-login",
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, err
	}
	cfg.Instrumentation = inst

	store, closeStore, err := openStore(cfg, opts, inst, logger)
	if err != nil {
		return nil, err
	}

	key := opts.Key
	if key == "" {
		key = cfg.ClientID
	}
	return &session{
		cfg:    cfg,
		preset: preset,
		store:  store,
		key:    key,
		inst:   inst,
		close: func() {
			closeStore()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = inst.Shutdown(shutdownCtx)
		},
	}, nil
}

// newClient creates a client persisting to the session store.
func (s *session) newClient(sink oauth.EventSink) (*oauth.Client, error) {
	return oauth.NewClient(s.cfg, sink, oauth.WithStore(s.store, s.key))
}
