package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filedrop/auth"
	"filedrop/chunk"
	"filedrop/repositories"
	"filedrop/services"
	"filedrop/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := services.NewLedgerService(repositories.NewSessionRepository(db), log)
	store := storage.NewDiskStore(t.TempDir(), log)
	artifacts := storage.NewArtifactStore(t.TempDir())
	assembler := services.NewAssemblerService(ledger, store, artifacts, log)
	transfers := services.NewTransferService(ledger, store, assembler, artifacts, log)
	reader := services.NewReaderService(ledger, artifacts, log)
	tokens := auth.NewTokenManager("test-signing-key", time.Hour)
	authSvc := services.NewAuthService(repositories.NewDeviceRepository(db), tokens)

	srv := NewServer(transfers, ledger, reader, authSvc, tokens, log, 1<<20)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func registerDevice(t *testing.T, ts *httptest.Server, name string) string {
	t.Helper()
	req := require.New(t)
	body, _ := json.Marshal(map[string]string{
		"device_name": name,
		"password":    "Str0ng&Secret-Pass",
	})
	resp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewReader(body))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusCreated, resp.StatusCode)

	var token tokenResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&token))
	req.Equal("bearer", token.TokenType)
	return token.AccessToken
}

func doAuthed(t *testing.T, ts *httptest.Server, token, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	httpReq, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(httpReq)
	require.NoError(t, err)
	return resp
}

func chunkBody(start int64, payload []byte) []byte {
	header := chunk.Header{
		Start:    start,
		End:      start + int64(len(payload)) - 1,
		Checksum: chunk.Sum(payload),
	}
	return append(chunk.Encode(header), payload...)
}

func TestServer_UploadDownloadLifecycle(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	token := registerDevice(t, ts, "camera-01")

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}

	t.Run("first chunk declares the size", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodPost,
			"/files/upload?filename=clip.bin&total_size=1000", chunkBody(0, content[:600]), nil)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		var status fileStatusResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&status))
		req.Equal("IN_PROGRESS", status.Status)
		req.Equal(int64(600), status.BytesReceived)
		req.Equal(int64(600), status.NextExpectedByte)
		req.Equal([]chunk.Range{{Start: 600, End: 999}}, status.MissingRanges)
	})

	t.Run("final chunk completes the upload", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodPost,
			"/files/upload?filename=clip.bin", chunkBody(600, content[600:]), nil)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		var status fileStatusResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&status))
		req.Equal("COMPLETE", status.Status)
		req.Empty(status.MissingRanges)
	})

	t.Run("full download returns the original bytes", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/clip.bin", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)
		req.Equal("bytes", resp.Header.Get("Accept-Ranges"))
		req.Contains(resp.Header.Get("Content-Disposition"), "clip.bin")

		data, err := io.ReadAll(resp.Body)
		req.NoError(err)
		req.Equal(content, data)
	})

	t.Run("ranged download returns 206 with Content-Range", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/clip.bin", nil,
			map[string]string{"Range": "bytes=10-20"})
		defer resp.Body.Close()
		req.Equal(http.StatusPartialContent, resp.StatusCode)
		req.Equal("bytes 10-20/1000", resp.Header.Get("Content-Range"))

		data, err := io.ReadAll(resp.Body)
		req.NoError(err)
		req.Equal(content[10:21], data)
	})

	t.Run("open-ended range runs to the last byte", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/clip.bin", nil,
			map[string]string{"Range": "bytes=990-"})
		defer resp.Body.Close()
		req.Equal(http.StatusPartialContent, resp.StatusCode)
		req.Equal("bytes 990-999/1000", resp.Header.Get("Content-Range"))
	})

	t.Run("suffix range serves the head of the file", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/clip.bin", nil,
			map[string]string{"Range": "bytes=-19"})
		defer resp.Body.Close()
		req.Equal(http.StatusPartialContent, resp.StatusCode)
		req.Equal("bytes 0-19/1000", resp.Header.Get("Content-Range"))

		data, err := io.ReadAll(resp.Body)
		req.NoError(err)
		req.Equal(content[:20], data)
	})

	t.Run("range past the end is 416", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/clip.bin", nil,
			map[string]string{"Range": "bytes=995-1500"})
		defer resp.Body.Close()
		req.Equal(http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	})

	t.Run("list shows the finished file", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		var list fileListResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&list))
		req.Len(list.Files, 1)
		req.Equal("clip.bin", list.Files[0].Filename)
	})

	t.Run("delete removes everything", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodDelete, "/files/clip.bin", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		status := doAuthed(t, ts, token, http.MethodGet, "/files/status/clip.bin", nil, nil)
		defer status.Body.Close()
		req.Equal(http.StatusNotFound, status.StatusCode)
	})
}

func TestServer_UploadFailures(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	token := registerDevice(t, ts, "camera-01")

	t.Run("corrupted chunk is a 400", func(t *testing.T) {
		body := chunkBody(0, []byte("hello"))
		body[len(body)-1]++

		resp := doAuthed(t, ts, token, http.MethodPost,
			"/files/upload?filename=x.bin&total_size=5", body, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("conflicting size declaration is a 409", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodPost,
			"/files/upload?filename=y.bin&total_size=100", chunkBody(0, make([]byte, 10)), nil)
		resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		resp = doAuthed(t, ts, token, http.MethodPost,
			"/files/upload?filename=y.bin&total_size=200", chunkBody(10, make([]byte, 10)), nil)
		defer resp.Body.Close()
		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("filename containing dot-dot is a 400", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/status/back..door", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("downloading a partial upload is a 404", func(t *testing.T) {
		resp := doAuthed(t, ts, token, http.MethodGet, "/files/download/y.bin", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_AuthBoundaries(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	t.Run("files endpoints require a token", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/files")
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("a garbage token is rejected", func(t *testing.T) {
		resp := doAuthed(t, ts, "not-a-token", http.MethodGet, "/files", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("registering the same device twice is a 409", func(t *testing.T) {
		registerDevice(t, ts, "camera-01")
		body, _ := json.Marshal(map[string]string{
			"device_name": "camera-01",
			"password":    "Str0ng&Secret-Pass",
		})
		resp, err := http.Post(ts.URL+"/register", "application/json", bytes.NewReader(body))
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("login with wrong password is a 401", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"device_name": "camera-01",
			"password":    "Wrong&Passw0rd!!",
		})
		resp, err := http.Post(ts.URL+"/token", "application/json", bytes.NewReader(body))
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("devices cannot see each other's files", func(t *testing.T) {
		tokenA := registerDevice(t, ts, "device-a")
		tokenB := registerDevice(t, ts, "device-b")

		resp := doAuthed(t, ts, tokenA, http.MethodPost,
			"/files/upload?filename=private.bin&total_size=5", chunkBody(0, []byte("hello")), nil)
		resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		resp = doAuthed(t, ts, tokenB, http.MethodGet, "/files/status/private.bin", nil, nil)
		defer resp.Body.Close()
		req.Equal(http.StatusNotFound, resp.StatusCode)
	})
}

func TestParseRangeHeader(t *testing.T) {
	req := require.New(t)

	t.Run("closed range", func(t *testing.T) {
		r, err := parseRangeHeader("bytes=10-20")
		req.NoError(err)
		req.Equal(&chunk.Range{Start: 10, End: 20}, r)
	})

	t.Run("open-ended range", func(t *testing.T) {
		r, err := parseRangeHeader("bytes=100-")
		req.NoError(err)
		req.Equal(&chunk.Range{Start: 100, End: -1}, r)
	})

	t.Run("suffix range reads from the start", func(t *testing.T) {
		r, err := parseRangeHeader("bytes=-500")
		req.NoError(err)
		req.Equal(&chunk.Range{Start: 0, End: 500}, r)
	})

	t.Run("missing header means whole file", func(t *testing.T) {
		r, err := parseRangeHeader("")
		req.NoError(err)
		req.Nil(r)
	})

	for _, header := range []string{"items=1-2", "bytes=-", "bytes=a-b", "bytes=-x", "bytes=20-10", "bytes=5"} {
		t.Run(fmt.Sprintf("rejects %q", header), func(t *testing.T) {
			_, err := parseRangeHeader(header)
			req.Error(err)
		})
	}
}

func TestValidateFilename(t *testing.T) {
	req := require.New(t)
	req.NoError(validateFilename("clip.bin"))
	req.NoError(validateFilename("archive.tar.gz"))
	req.Error(validateFilename(""))
	req.Error(validateFilename("a/b"))
	req.Error(validateFilename(`a\b`))
	req.Error(validateFilename("../escape"))
	req.Error(validateFilename(string(make([]byte, 300))))
}
