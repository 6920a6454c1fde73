// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package device

import (
	"log/slog"
	"sync"
)

// Registry holds at most one Binding per role.
type Registry struct {
	mu       sync.Mutex
	host     Host
	bindings map[Role]*Binding
	logger   *slog.Logger
}

func NewRegistry(host Host) *Registry {
	return &Registry{
		host:     host,
		bindings: make(map[Role]*Binding),
		logger:   slog.With("component", "device_registry"),
	}
}

func (r *Registry) Host() Host {
	return r.host
}

// Bind resolves key (a device index or name) through the host and binds it.
func (r *Registry) Bind(role Role, key string) (*Binding, error) {
	dev, err := r.host.Device(key, role)
	if err != nil {
		return nil, err
	}
	return r.BindDevice(role, dev)
}

// BindDevice replaces the binding for role. The previous stream is closed
// before the new one is opened. Playback roles are opened immediately;
// capture roles are opened by the recognition session that reads them.
func (r *Registry) BindDevice(role Role, dev Device) (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.bindings[role]; ok {
		prev.Close()
		delete(r.bindings, role)
	}

	b := newBinding(role, dev)
	if !role.IsCapture() {
		if err := b.Open(playbackFramesPerBuffer); err != nil {
			return nil, err
		}
	}
	r.bindings[role] = b
	r.logger.Info("device bound", "role", role.String(), "device", dev.Name(), "sample_rate", b.rate)
	return b, nil
}

func (r *Registry) Get(role Role) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[role]
	return b, ok
}

// Missing returns the roles among want that have no binding.
func (r *Registry) Missing(want ...Role) []Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []Role
	for _, role := range want {
		if _, ok := r.bindings[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// Close closes the streams of the given roles, keeping the bindings.
func (r *Registry) Close(roles ...Role) {
	r.mu.Lock()
	bs := make([]*Binding, 0, len(roles))
	for _, role := range roles {
		if b, ok := r.bindings[role]; ok {
			bs = append(bs, b)
		}
	}
	r.mu.Unlock()

	for _, b := range bs {
		b.Close()
	}
}

// Bound returns role name to device name for every binding.
func (r *Registry) Bound() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.bindings))
	for role, b := range r.bindings {
		out[role.String()] = b.DeviceName()
	}
	return out
}

// Terminate closes every binding and releases the audio subsystem.
func (r *Registry) Terminate() error {
	r.mu.Lock()
	for role, b := range r.bindings {
		b.Close()
		delete(r.bindings, role)
	}
	r.mu.Unlock()

	if r.host == nil {
		return nil
	}
	return r.host.Terminate()
}
