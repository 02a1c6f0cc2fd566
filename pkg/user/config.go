package user

import (
	"github.com/iotaledger/streams-go/pkg/spongos"
	"github.com/iotaledger/streams-go/pkg/streamserr"
	"github.com/iotaledger/streams-go/pkg/userstore/boltstore"
)

// Logger receives a User's diagnostic output. The zero value of Config
// leaves this nil, in which case a User logs nothing: idiomatic Go
// libraries don't log on behalf of their caller unless asked to.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}

// Config carries the knobs around a User that do not affect the wire
// protocol: RateBytes and CapacityBytes simply report the Keccak-f[1600]
// dimensions this module's Spongos always runs with, since nothing here
// supports swapping the permutation; BoltPath, if set, is where Persist
// saves an encrypted snapshot.
type Config struct {
	Logger Logger

	RateBytes     int
	CapacityBytes int

	BoltPath string
}

// DefaultConfig is the Config New uses when not given one explicitly.
func DefaultConfig() Config {
	f := spongos.KeccakF1600{}
	return Config{
		Logger:        noopLogger{},
		RateBytes:     f.Rate(),
		CapacityBytes: f.Capacity(),
	}
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return noopLogger{}
	}
	return c.Logger
}

// SetLogger replaces this User's logger, for a caller that wants to attach
// one after construction (notably after RestoreUser, which has no Config
// parameter of its own).
func (u *User) SetLogger(l Logger) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	u.logger = l
}

// SetPersistPath sets or clears the bolt database path Persist saves to.
func (u *User) SetPersistPath(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.boltPath = path
}

// Persist snapshots this User under passphrase and saves it to the
// configured BoltPath, keyed by this User's own identifier. It opens and
// closes the underlying bolt database for the duration of the call rather
// than holding it open for this User's whole lifetime.
func (u *User) Persist(passphrase string) error {
	u.mu.Lock()
	path := u.boltPath
	label := u.identifier.MapKey()
	u.mu.Unlock()

	if path == "" {
		return streamserr.New(streamserr.Unexpected, "no BoltPath configured for this user")
	}

	snap, err := u.Snapshot(passphrase)
	if err != nil {
		return err
	}

	store, err := boltstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(label, snap)
}
