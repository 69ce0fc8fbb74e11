// Command verify runs one submission through the pipeline and prints the outcome.
//
//	verify -front rg.jpg -back cpf.jpg -selfie me.jpg
//
// References may be local paths or s3://bucket/key when S3 is configured. The exit status
// is 0 when the submission is ready for review, 2 when it was rejected and 1 on a startup
// error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"docverify/internal/bootstrap"
	"docverify/internal/platform/config"
	"docverify/internal/platform/logger"
	"docverify/internal/platform/metrics"
	"docverify/internal/verification"
	id "docverify/pkg/domain"
)

const exitRejected = 2

var errRejected = errors.New("submission rejected")

func main() {
	err := run(os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errRejected):
		os.Exit(exitRejected)
	default:
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
}

type options struct {
	front, back, selfie string
	userID              string
	submissionID        string
	asJSON              bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.StringVar(&o.front, "front", "", "front (identity) side of the document")
	fs.StringVar(&o.back, "back", "", "back (CPF) side of the document")
	fs.StringVar(&o.selfie, "selfie", "", "selfie of the submitter")
	fs.StringVar(&o.userID, "user", "", "submitter user ID (random when empty)")
	fs.StringVar(&o.submissionID, "submission", "", "submission ID (random when empty)")
	fs.BoolVar(&o.asJSON, "json", false, "print the outcome as JSON")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.front == "" || o.back == "" || o.selfie == "" {
		return o, errors.New("-front, -back and -selfie are required")
	}
	return o, nil
}

func (o options) submission() (verification.Submission, error) {
	sub := verification.Submission{
		ID:        id.NewSubmissionID(),
		UserID:    id.NewUserID(),
		FrontRef:  o.front,
		BackRef:   o.back,
		SelfieRef: o.selfie,
	}
	if o.userID != "" {
		uid, err := id.ParseUserID(o.userID)
		if err != nil {
			return sub, err
		}
		sub.UserID = uid
	}
	if o.submissionID != "" {
		sid, err := id.ParseSubmissionID(o.submissionID)
		if err != nil {
			return sub, err
		}
		sub.ID = sid
	}
	return sub, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	sub, err := opts.submission()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, log, metrics.NewRegistry(), bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}()

	outcome := app.Service.Verify(ctx, sub)
	if err := printOutcome(stdout, sub, outcome, opts.asJSON); err != nil {
		return err
	}
	if !outcome.Success {
		return errRejected
	}
	return nil
}

func printOutcome(w io.Writer, sub verification.Submission, outcome verification.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			SubmissionID id.SubmissionID `json:"submission_id"`
			verification.Outcome
		}{sub.ID, outcome})
	}
	_, err := fmt.Fprintf(w, "submission %s: %s (%s)\n", sub.ID, outcome.Message, outcome.Stage)
	return err
}
