package services

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func createMockFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()
	storage := NewLocalStorage(tempDir)
	ctx := context.Background()
	content := "fake-png-bytes"
	key := "scr_abc.png"

	t.Run("UploadReader creates file", func(t *testing.T) {
		result, err := storage.UploadReader(ctx, strings.NewReader(content), key, "image/png", int64(len(content)))
		require.NoError(t, err)
		assert.Equal(t, key, result.Key)
		assert.Equal(t, int64(len(content)), result.FileSize)

		_, err = os.Stat(filepath.Join(tempDir, key))
		assert.NoError(t, err)
	})

	t.Run("Get retrieves file content", func(t *testing.T) {
		reader, contentType, err := storage.Get(ctx, key)
		require.NoError(t, err)
		defer reader.Close()

		got, _ := io.ReadAll(reader)
		assert.Equal(t, content, string(got))
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("Keys cannot escape the base directory", func(t *testing.T) {
		_, err := storage.UploadReader(ctx, strings.NewReader("x"), "../../escape.png", "image/png", 1)
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(tempDir, "escape.png"))
		assert.NoError(t, err)

		_, _, err = storage.Get(ctx, "..")
		assert.Error(t, err)
	})

	t.Run("Signed URLs are not issued", func(t *testing.T) {
		_, err := storage.GetSignedURL(ctx, key, time.Minute)
		assert.ErrorIs(t, err, ErrSignedURLUnsupported)
	})

	t.Run("Delete removes file", func(t *testing.T) {
		require.NoError(t, storage.Delete(ctx, key))
		_, err := os.Stat(filepath.Join(tempDir, key))
		assert.True(t, os.IsNotExist(err))
		// Deleting twice is fine
		assert.NoError(t, storage.Delete(ctx, key))
	})
}

func TestValidateScreenshotUpload(t *testing.T) {
	t.Run("Valid PNG", func(t *testing.T) {
		file := createMockFileHeader(t, "proof.PNG", append(pngHeader, make([]byte, 100)...))
		contentType, err := ValidateScreenshotUpload(file)
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
	})

	t.Run("Wrong extension", func(t *testing.T) {
		file := createMockFileHeader(t, "proof.pdf", []byte("%PDF-1.4"))
		_, err := ValidateScreenshotUpload(file)
		assert.ErrorIs(t, err, ErrInvalidUpload)
	})

	t.Run("Content does not match extension", func(t *testing.T) {
		file := createMockFileHeader(t, "proof.jpg", append(pngHeader, make([]byte, 100)...))
		_, err := ValidateScreenshotUpload(file)
		assert.ErrorIs(t, err, ErrInvalidUpload)
	})

	t.Run("Too large", func(t *testing.T) {
		file := createMockFileHeader(t, "large.png", append(pngHeader, make([]byte, MaxScreenshotSize)...))
		_, err := ValidateScreenshotUpload(file)
		assert.ErrorIs(t, err, ErrInvalidUpload)
	})
}

func TestStoreScreenshot(t *testing.T) {
	storage := NewLocalStorage(t.TempDir())
	file := createMockFileHeader(t, "evidence.png", append(pngHeader, make([]byte, 64)...))

	result, err := StoreScreenshot(context.Background(), storage, file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Key, "scr_"))
	assert.True(t, strings.HasSuffix(result.Key, ".png"))
	assert.Equal(t, result.Key, NormalizeStorageKey(result.Key))
}

func TestGenerateScreenshotKey(t *testing.T) {
	first := GenerateScreenshotKey("a.JPG")
	second := GenerateScreenshotKey("a.JPG")
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, ".jpg"))
	assert.NotContains(t, first, "/")
}
