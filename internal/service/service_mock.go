package service

import (
	"context"
	"io"

	"github.com/UnendingLoop/CrystalUpscaler/internal/model"
)

// MOCK UPLOADER

type mockUploader struct {
	uploadFn func(ctx context.Context, data []byte, ct, name string) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, data []byte, ct, name string) (string, error) {
	return m.uploadFn(ctx, data, ct, name)
}

// MOCK JOB

type mockJob struct {
	runFn func(ctx context.Context, args model.JobArguments) (*model.JobResult, error)
}

func (m *mockJob) Run(ctx context.Context, args model.JobArguments) (*model.JobResult, error) {
	return m.runFn(ctx, args)
}

// MOCK FETCHER

type mockFetcher struct {
	getFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockFetcher) Get(ctx context.Context, url string) ([]byte, string, error) {
	return m.getFn(ctx, url)
}

// MOCK STORE

type mockStore struct {
	saveFn func(ctx context.Context, path string, data []byte) error
}

func (m *mockStore) Save(ctx context.Context, path string, data []byte) error {
	return m.saveFn(ctx, path, data)
}

// MOCK MIRROR

type mockMirror struct {
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
}

func (m *mockMirror) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}
