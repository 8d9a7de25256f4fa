package keyfold

import (
	"errors"

	"github.com/keyfold/keyfold/hashing"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build; no I/O happens before the first Engine method call.
type Builder struct {
	config   Config
	store    AccountStore
	notifier Notifier

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the account store collaborator. Required.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the event dispatch collaborator. Optional; events are
// discarded without one.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// Build validates the configuration and wires the engine. A Builder builds
// at most once.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("account store is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	hasher, err := hashing.New(hashing.Config{
		DefaultIterations: b.config.Hash.DefaultIterations,
		MinIterations:     b.config.Hash.MinIterations,
		SaltLength:        b.config.Hash.SaltLength,
		KeyLength:         b.config.Hash.KeyLength,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	b.built = true

	return &Engine{
		config: b.config,
		store:  b.store,
		creds:  newCredStore(b.store, b.config.Account.UpdateRetries),
		hasher: hasher,
		totp:   newTOTPProvider(b.config.TOTP),
		notify: newNotifyDispatcher(b.config.Notify, b.notifier),
	}, nil
}
