// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ExecPuller shells out to the git binary.
type ExecPuller struct {
	Dir string
	// Git is the binary name or path; "git" when empty.
	Git string
}

func (p *ExecPuller) bin() string {
	if p.Git == "" {
		return "git"
	}
	return p.Git
}

func (p *ExecPuller) Available() error {
	if _, err := exec.LookPath(p.bin()); err != nil {
		return fmt.Errorf("git binary: %w", err)
	}
	return nil
}

func (p *ExecPuller) Head(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin(), "rev-parse", "--short", "HEAD")
	cmd.Dir = p.Dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (p *ExecPuller) Pull(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.bin(), "pull", "--ff-only")
	cmd.Dir = p.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if strings.Contains(msg, "Not possible to fast-forward") {
			return fmt.Errorf("%w: %s", ErrNonFastForward, msg)
		}
		return errors.New(msg)
	}
	if strings.Contains(stdout.String(), "Already up to date") {
		return ErrUpToDate
	}
	return nil
}

// GoGitPuller pulls in-process with go-git, for images without a git binary.
// go-git only ever fast-forwards.
type GoGitPuller struct {
	Dir string
	// Remote defaults to "origin".
	Remote string
}

func (p *GoGitPuller) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", p.Dir, err)
	}
	return repo, nil
}

func (p *GoGitPuller) Available() error {
	_, err := p.open()
	return err
}

func (p *GoGitPuller) Head(context.Context) (string, error) {
	repo, err := p.open()
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String()[:7], nil
}

func (p *GoGitPuller) Pull(ctx context.Context) error {
	repo, err := p.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	remote := p.Remote
	if remote == "" {
		remote = git.DefaultRemoteName
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: remote})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrUpToDate
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %v", ErrNonFastForward, err)
	default:
		return fmt.Errorf("git pull: %w", err)
	}
}
