// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

type (
	Stage string
	Kind  string
)

const (
	StageStart       Stage = "start"
	StageRead        Stage = "read"
	StageUploaded    Stage = "uploaded"
	StageJobComplete Stage = "job_complete"
	StageDownloaded  Stage = "downloaded"
	StageSaved       Stage = "saved"
	StageFailed      Stage = "failed"
)

const (
	KindUsage        Kind = "usage"
	KindConfig       Kind = "config"
	KindInput        Kind = "input"
	KindTransport    Kind = "transport"
	KindRemoteResult Kind = "remote_result"
)

//---------------------

const (
	MinScaleFactor = 1
	MaxScaleFactor = 200
	MinCreativity  = 0
	MaxCreativity  = 10

	OutputSuffix = "_Upscaled.png"
)

// JobRequest is built once per invocation and never mutated afterwards.
type JobRequest struct {
	SourcePath  string
	Data        []byte
	ContentType string
	ScaleFactor int
	Creativity  int
}

// JobArguments is the payload submitted to the remote upscaling job.
type JobArguments struct {
	ImageURL    string `json:"image_url"`
	ScaleFactor int    `json:"scale_factor"`
	Creativity  int    `json:"creativity"`
}

type ImageRef struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// JobResult mirrors the remote response. Only Images[0] is consulted.
type JobResult struct {
	Images []ImageRef `json:"images"`
	Seed   *int64     `json:"seed,omitempty"`
}

// FirstImageURL returns the URL of the first produced image or ErrNoOutputImage.
func (r *JobResult) FirstImageURL() (string, error) {
	if r == nil || len(r.Images) == 0 || r.Images[0].URL == "" {
		return "", ErrNoOutputImage
	}
	return r.Images[0].URL, nil
}

// ItemStatus tracks one image of a batch.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusComplete   ItemStatus = "complete"
	StatusError      ItemStatus = "error"
)

// BatchItem is the outcome of one image in a batch run.
// Stage is StageSaved on success and StageFailed otherwise; FailedAt keeps the last stage reached.
type BatchItem struct {
	SourcePath string
	OutputPath string
	Status     ItemStatus
	Stage      Stage
	FailedAt   Stage
	Err        error
}

// ErrorMessage returns the item's error text or an empty string.
func (i BatchItem) ErrorMessage() string {
	if i.Err == nil {
		return ""
	}
	return i.Err.Error()
}

type BatchSummary struct {
	Items     []BatchItem
	Completed int
	Failed    int
}

// Message renders the one-line summary shown after a batch run.
func (s BatchSummary) Message() string {
	if s.Failed == 0 {
		return fmt.Sprintf("Complete! %d image(s) upscaled", s.Completed)
	}
	return fmt.Sprintf("Done with %d error(s). %d/%d succeeded", s.Failed, s.Completed, len(s.Items))
}

// Validate checks numeric parameters against the ranges accepted by the remote model.
func (r *JobRequest) Validate() error {
	if r.ScaleFactor < MinScaleFactor || r.ScaleFactor > MaxScaleFactor {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidScale, r.ScaleFactor, MinScaleFactor, MaxScaleFactor)
	}
	if r.Creativity < MinCreativity || r.Creativity > MaxCreativity {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidCreativity, r.Creativity, MinCreativity, MaxCreativity)
	}
	return nil
}

// ------------------

var (
	ErrNoOutputImage     error = errors.New("no output image returned from API")     // remote_result
	ErrMissingFalKey     error = errors.New("FAL_KEY not set in environment")        // config
	ErrJobTimeout        error = errors.New("upscale job did not finish in time")    // transport
	ErrJobFailed         error = errors.New("upscale job failed")                    // transport
	ErrInvalidScale      error = errors.New("scale_factor out of range")             // input
	ErrInvalidCreativity error = errors.New("creativity out of range")               // input
	ErrEmptySource       error = errors.New("empty/incorrect source image provided") // input
)

// Error carries the kind of failure and the pipeline stage it happened at.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap attaches kind and stage to err. A nil err stays nil.
func Wrap(kind Kind, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the kind of err, defaulting to KindTransport for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	WEBP = "image/webp"
)

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.PNG:  PNG,
}
