package process

import (
	"context"
	"errors"
	"fmt"
)

// Action is a single-pair operation applied by bulk helpers.
type Action func(ctx context.Context, name, version string) error

// ForEachInstalledVersion applies action to every installed version of a
// component in version order. Each call is isolated: an error or panic is
// recorded in its Outcome and the loop continues. Cancelling ctx lets the
// current item finish and skips the rest.
func (s *Supervisor) ForEachInstalledVersion(ctx context.Context, op, name string, action Action, rep Reporter) BulkResult {
	var res BulkResult
	desc, err := s.Registry.Lookup(name)
	if err != nil {
		res.add(Outcome{Op: op, Component: name, Err: err})
		return res
	}
	for _, version := range s.Store.ListInstalled(desc.Name) {
		if ctx.Err() != nil {
			break
		}
		res.add(s.runOne(ctx, op, desc.Name, version, action, rep))
	}
	return res
}

func (s *Supervisor) runOne(ctx context.Context, op, name, version string, action Action, rep Reporter) (o Outcome) {
	o = Outcome{Op: op, Component: name, Version: version}
	if rep != nil {
		rep.Begin(op, name, version)
		defer func() { rep.Done(o) }()
	}
	defer func() {
		if r := recover(); r != nil {
			o.Err = opErr(op, name, version, fmt.Errorf("panic: %v", r))
			s.logf("%s %s %s panicked: %v", op, name, version, r)
		}
	}()
	o.Err = action(ctx, name, version)
	if errors.Is(o.Err, errSkipped) {
		o.Err = nil
		o.Skipped = true
	}
	return o
}

// StartAll starts every installed version of every service component that is
// not already running.
func (s *Supervisor) StartAll(ctx context.Context, rep Reporter) BulkResult {
	return s.eachService(ctx, "start", s.startIfStopped, rep)
}

// StopAll stops every running version of every service component.
func (s *Supervisor) StopAll(ctx context.Context, rep Reporter) BulkResult {
	return s.eachService(ctx, "stop", s.Stop, rep)
}

// RestartAll restarts every installed version of every service component.
func (s *Supervisor) RestartAll(ctx context.Context, rep Reporter) BulkResult {
	return s.eachService(ctx, "restart", s.Restart, rep)
}

func (s *Supervisor) eachService(ctx context.Context, op string, action Action, rep Reporter) BulkResult {
	var res BulkResult
	for _, desc := range s.Registry.Services() {
		part := s.ForEachInstalledVersion(ctx, op, desc.Name, action, rep)
		res.Outcomes = append(res.Outcomes, part.Outcomes...)
	}
	return res
}

var errSkipped = errors.New("already running")

func (s *Supervisor) startIfStopped(ctx context.Context, name, version string) error {
	st, err := s.Status(name, version)
	if err != nil {
		return err
	}
	if st.State == Running {
		return errSkipped
	}
	return s.Start(ctx, name, version)
}
