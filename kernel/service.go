package kernel

import "github.com/pandagen/kernel/core"

// RegisterService publishes channel under service, provided caller
// currently holds a receive capability on channel. Registering a
// service mints no new authority: lookup only ever hands back the
// ChannelId, and a lookup caller still needs its own capability to
// actually send or receive on it (SPEC_FULL.md "register_service...
// does not mint new authority, it only publishes an existing
// ChannelCap's ChannelId under a name").
func (k *SimKernel) RegisterService(caller core.ExecutionId, service core.ServiceId, channel core.ChannelId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.holdsChannelCapLocked(caller, channel, core.CapKindChannelReceive); err != nil {
		return err
	}
	k.services[service] = channel
	return nil
}

// LookupService resolves service to the ChannelId registered for it.
// The caller receives only the id, not a capability — it must already
// hold (or separately be granted) a cap naming that channel before any
// send/recv against it will succeed.
func (k *SimKernel) LookupService(caller core.ExecutionId, service core.ServiceId) (core.ChannelId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()
	channel, ok := k.services[service]
	if !ok {
		return core.ChannelId{}, core.TargetUnknown()
	}
	return channel, nil
}
