// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package updater pulls new dashboard code from the git remote in the
// background and reports progress as human-readable status text.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a single pull.
const DefaultTimeout = 90 * time.Second

// Status texts for requests that never start a worker.
const (
	StatusInProgress   = "Update already in progress"
	StatusNoRepository = "Repository not found"
	StatusNoGit        = "Git is not installed"
	StatusOffline      = "No internet connection"
)

var (
	// ErrUpToDate is returned by a Puller when there was nothing to pull.
	ErrUpToDate = errors.New("already up to date")
	// ErrNonFastForward is returned when local history diverged from the remote.
	ErrNonFastForward = errors.New("not possible to fast-forward")
)

// Puller performs the git operations.
type Puller interface {
	// Available reports whether the pull mechanism can be used at all.
	Available() error
	// Head returns the short hash of the checked out commit.
	Head(ctx context.Context) (string, error)
	// Pull fast-forwards the checkout; it must honour ctx.
	Pull(ctx context.Context) error
}

// Updater runs at most one pull at a time.
type Updater struct {
	repoPath string
	version  func() string
	status   func(string)
	puller   Puller
	timeout  time.Duration
	online   func() error

	updating atomic.Bool
	wg       sync.WaitGroup
}

// Option configures an Updater.
type Option func(*Updater)

// WithPuller replaces the default `git` subprocess puller.
func WithPuller(p Puller) Option { return func(u *Updater) { u.puller = p } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(u *Updater) { u.timeout = d } }

// WithConnectivityCheck overrides the internet probe.
func WithConnectivityCheck(fn func() error) Option { return func(u *Updater) { u.online = fn } }

// New returns an updater for the repository at repoPath. version reports the
// installed version; status receives every message, from the caller's
// goroutine for rejected requests and from the worker goroutine otherwise.
func New(repoPath string, version func() string, status func(string), opts ...Option) *Updater {
	u := &Updater{
		repoPath: repoPath,
		version:  version,
		status:   status,
		puller:   &ExecPuller{Dir: repoPath},
		timeout:  DefaultTimeout,
		online:   CheckInternet,
	}
	for _, o := range opts {
		o(u)
	}
	if u.version == nil {
		u.version = func() string { return "unknown" }
	}
	return u
}

// InProgress reports whether a worker is running.
func (u *Updater) InProgress() bool { return u.updating.Load() }

// Wait blocks until the current worker, if any, has finished.
func (u *Updater) Wait() { u.wg.Wait() }

// HandleUpdateRequest validates the environment and starts a pull worker.
// It returns true only when a worker was started.
func (u *Updater) HandleUpdateRequest() bool {
	if !u.updating.CompareAndSwap(false, true) {
		u.setStatus(StatusInProgress)
		return false
	}

	if err := u.precheck(); err != nil {
		u.updating.Store(false)
		u.setStatus(err.Error())
		return false
	}

	u.wg.Add(1)
	go u.run()
	return true
}

func (u *Updater) precheck() error {
	if st, err := os.Stat(u.repoPath); err != nil || !st.IsDir() {
		return errors.New(StatusNoRepository)
	}
	if err := u.puller.Available(); err != nil {
		log.Printf("updater: %v", err)
		return errors.New(StatusNoGit)
	}
	if err := u.online(); err != nil {
		log.Printf("updater: connectivity check: %v", err)
		return errors.New(StatusOffline)
	}
	return nil
}

func (u *Updater) run() {
	defer u.wg.Done()
	defer u.updating.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	oldVersion := u.version()
	oldCommit := u.head(ctx)
	u.setStatus(fmt.Sprintf("Updating from v%s (%s)", oldVersion, oldCommit))

	err := u.puller.Pull(ctx)
	switch {
	case errors.Is(err, ErrUpToDate):
		u.setStatus(fmt.Sprintf("Already up to date\nVersion: %s\nCommit: %s", oldVersion, oldCommit))
		return
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		u.setStatus(fmt.Sprintf("Update error: git pull timed out after %s", u.timeout))
		return
	case err != nil:
		u.setStatus(fmt.Sprintf("Update failed:\n%v", err))
		return
	}

	newCommit := u.head(ctx)
	newVersion := u.version()
	u.setStatus(fmt.Sprintf("Update successful\nVersion: %s\nCommit: %s → %s\nRestart recommended",
		describeVersionChange(oldVersion, newVersion), oldCommit, newCommit))
}

func (u *Updater) head(ctx context.Context) string {
	h, err := u.puller.Head(ctx)
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

func (u *Updater) setStatus(msg string) {
	log.Printf("updater: %s", msg)
	if u.status != nil {
		u.status(msg)
	}
}

// CheckInternet dials a public DNS server.
func CheckInternet() error {
	conn, err := net.DialTimeout("tcp", "8.8.8.8:53", 3*time.Second)
	if err != nil {
		return err
	}
	return conn.Close()
}
