package local

import (
	"github.com/spf13/afero"

	"github.com/infraweave-io/control-plane/internal/facade"
)

// Options configures the Local capability set.
type Options struct {
	ObjectRoot     string
	PresignBaseURL string
	RunnerPath     string
	NATSURL        string // empty disables Notify
}

// New assembles a facade.Capability backed entirely by in-process/OS primitives, for
// development and for integration tests that should not touch a real cloud account.
func New(opts Options) (facade.Capability, error) {
	var notify facade.Notify = NoopNotify{}
	if opts.NATSURL != "" {
		n, err := NewNotify(opts.NATSURL)
		if err != nil {
			return facade.Capability{}, err
		}
		notify = n
	}

	return facade.Capability{
		Runtime: facade.Local,
		KV:      NewKVStore(),
		Object:  NewObjectStore(afero.NewOsFs(), opts.ObjectRoot, opts.PresignBaseURL),
		Exec:    NewExec(opts.RunnerPath),
		Logs:    NewLogs(),
		Notify:  notify,
	}, nil
}
