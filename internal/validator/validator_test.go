package validator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/store"
	"github.com/Xunop/bookworm/internal/store/db"
)

func TestValidate(t *testing.T) {
	ctx := context.Background()
	archive := []byte("PK\x03\x04 fake archive")

	withServer := func(handler http.HandlerFunc, fn func(*Client)) {
		server := httptest.NewServer(handler)
		defer server.Close()
		fn(NewClient(server.URL, time.Second, 0))
	}
	reply := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			fmt.Fprint(w, body)
		}
	}

	t.Run("TestMultipartUpload", func(t *testing.T) {
		var got []byte
		var name string
		withServer(func(w http.ResponseWriter, r *http.Request) {
			file, header, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer file.Close()
			name = header.Filename
			got, _ = io.ReadAll(file)
			fmt.Fprint(w, `{"errors": []}`)
		}, func(c *Client) {
			if v := c.Validate(ctx, "book.epub", archive); v.Status != StatusValid {
				t.Errorf("Expected valid, got %+v", v)
			}
		})
		if name != "book.epub" || string(got) != string(archive) {
			t.Errorf("Server received %q with %q", name, got)
		}
	})

	t.Run("TestInvalid", func(t *testing.T) {
		body := `{"errors": [{"code": "RSC-005", "message": "Error while parsing file"}, {"code": "OPF-030", "message": "unique-identifier not found"}]}`
		withServer(reply(http.StatusOK, body), func(c *Client) {
			v := c.Validate(ctx, "book.epub", archive)
			if v.Status != StatusInvalid || len(v.Errors) != 2 {
				t.Fatalf("Unexpected verdict %+v", v)
			}
			if v.Errors[1].Code != "OPF-030" {
				t.Errorf("Unexpected error entry %+v", v.Errors[1])
			}
		})
	})

	cases := map[string]http.HandlerFunc{
		"server error":   reply(http.StatusInternalServerError, `{"errors": []}`),
		"not json":       reply(http.StatusOK, `<html>maintenance</html>`),
		"no error list":  reply(http.StatusOK, `{"status": "ok"}`),
		"slow validator": func(w http.ResponseWriter, r *http.Request) { time.Sleep(1500 * time.Millisecond) },
	}
	for name, handler := range cases {
		t.Run("TestFailOpen/"+name, func(t *testing.T) {
			withServer(handler, func(c *Client) {
				if v := c.Validate(ctx, "book.epub", archive); v.Status != StatusUnknown {
					t.Errorf("Expected unknown, got %+v", v)
				}
			})
		})
	}

	t.Run("TestUnreachable", func(t *testing.T) {
		server := httptest.NewServer(reply(http.StatusOK, `{"errors": []}`))
		url := server.URL
		server.Close()
		if v := NewClient(url, time.Second, 1).Validate(ctx, "book.epub", archive); v.Status != StatusUnknown {
			t.Errorf("Expected unknown, got %+v", v)
		}
	})

	t.Run("TestDisabled", func(t *testing.T) {
		if v := NewClient("", time.Second, 1).Validate(ctx, "book.epub", archive); v.Status != StatusUnknown {
			t.Errorf("Expected unknown, got %+v", v)
		}
	})
}

func TestValidateArchiveCreateRequest(t *testing.T) {
	d, err := db.NewDB(filepath.Join(t.TempDir(), "bookworm.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := store.NewStore(d.DB)
	if _, err := s.AddArchive(&model.Archive{Name: "taken.epub", Owner: "alice", Content: []byte("x")}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		archive *model.Archive
		ok      bool
	}{
		{"nil", nil, false},
		{"valid", &model.Archive{Name: "book.epub", Owner: "alice", Content: []byte("x")}, true},
		{"upper case extension", &model.Archive{Name: "BOOK.EPUB", Owner: "alice", Content: []byte("x")}, true},
		{"wrong extension", &model.Archive{Name: "book.pdf", Owner: "alice", Content: []byte("x")}, false},
		{"bad owner", &model.Archive{Name: "book.epub", Owner: "../root", Content: []byte("x")}, false},
		{"empty", &model.Archive{Name: "book.epub", Owner: "alice"}, false},
		{"too large", &model.Archive{Name: "book.epub", Owner: "alice", Content: make([]byte, 11)}, false},
		{"duplicate", &model.Archive{Name: "taken.epub", Owner: "alice", Content: []byte("x")}, false},
		{"same name other owner", &model.Archive{Name: "taken.epub", Owner: "bob", Content: []byte("x")}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateArchiveCreateRequest(s, c.archive, 10)
			if (err == nil) != c.ok {
				t.Errorf("ok = %v, err = %v", c.ok, err)
			}
		})
	}
}
