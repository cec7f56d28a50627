package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLoader is a mock implementation of the Loader interface for testing.
type mockLoader struct {
	loadFunc func(ctx context.Context, filePath string) ([]Entry, error)
}

func (m *mockLoader) Load(ctx context.Context, filePath string) ([]Entry, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, filePath)
	}
	return nil, errors.New("not implemented")
}

// fakeS3 serves objects from memory.
type fakeS3 struct {
	objects map[string][]byte
	gotKey  string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(params.Key)
	data, ok := f.objects[f.gotKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Loader_Load(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"catalog/menu.gz": gzipLines(t, `{"title":"Эспрессо","price":"40.00"}`),
	}}
	loader := newS3Loader(client, "shop-bucket", zerolog.Nop())

	entries, err := loader.Load(context.Background(), "catalog/menu.gz")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Эспрессо", entries[0].Title)
	assert.Equal(t, "catalog/menu.gz", client.gotKey)
}

func TestS3Loader_Load_MissingObject(t *testing.T) {
	loader := newS3Loader(&fakeS3{}, "shop-bucket", zerolog.Nop())

	_, err := loader.Load(context.Background(), "catalog/absent.gz")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=shop-bucket")
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestFallbackLoader_S3Success(t *testing.T) {
	s3Loader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			assert.Equal(t, "catalog/menu.gz", filePath, "S3 key should have prefix")
			return []Entry{{Title: "from-s3"}}, nil
		},
	}
	fileLoader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			t.Error("file loader should not be called when S3 succeeds")
			return nil, errors.New("should not be called")
		},
	}

	fallback := NewFallbackLoader(s3Loader, fileLoader, "catalog/", true, zerolog.Nop())

	entries, err := fallback.Load(context.Background(), "menu.gz")
	require.NoError(t, err)
	assert.Equal(t, "from-s3", entries[0].Title)
}

func TestFallbackLoader_S3FailsFallsBackToLocal(t *testing.T) {
	s3Loader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			return nil, errors.New("S3 connection failed")
		},
	}
	fileLoader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			assert.Equal(t, "menu.gz", filePath, "local file path should not have prefix")
			return []Entry{{Title: "from-disk"}}, nil
		},
	}

	fallback := NewFallbackLoader(s3Loader, fileLoader, "catalog/", true, zerolog.Nop())

	entries, err := fallback.Load(context.Background(), "menu.gz")
	require.NoError(t, err)
	assert.Equal(t, "from-disk", entries[0].Title)
}

func TestFallbackLoader_S3Disabled(t *testing.T) {
	s3Called := false
	s3Loader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			s3Called = true
			return nil, nil
		},
	}
	fileLoader := &mockLoader{
		loadFunc: func(ctx context.Context, filePath string) ([]Entry, error) {
			return []Entry{{Title: "from-disk"}}, nil
		},
	}

	for _, tc := range []struct {
		name    string
		s3      Loader
		enabled bool
	}{
		{name: "Disabled", s3: s3Loader, enabled: false},
		{name: "Nil S3 loader", s3: nil, enabled: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fallback := NewFallbackLoader(tc.s3, fileLoader, "catalog/", tc.enabled, zerolog.Nop())

			entries, err := fallback.Load(context.Background(), "menu.gz")
			require.NoError(t, err)
			assert.Equal(t, "from-disk", entries[0].Title)
		})
	}
	assert.False(t, s3Called)
}

func TestFallbackLoader_BothFail(t *testing.T) {
	failing := &mockLoader{}
	fallback := NewFallbackLoader(failing, failing, "catalog/", true, zerolog.Nop())

	_, err := fallback.Load(context.Background(), "menu.gz")
	assert.Error(t, err)
}
