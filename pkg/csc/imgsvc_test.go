package csc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageNameClientNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FiberSpectrograph/2", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("n"))
		fmt.Fprint(w, `[{"name":"CC_O_20260820_000031","sequence":31},`+
			`{"name":"CC_O_20260820_000032","sequence":32}]`)
	}))
	defer srv.Close()

	client := NewImageNameClient(srv.URL, Name, 2)
	ids, err := client.Next(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "CC_O_20260820_000031", ids[0].Name)
	assert.Equal(t, 31, ids[0].SeqNum)
	assert.Equal(t, 32, ids[1].SeqNum)
}

func TestImageNameClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("n") {
		case "3":
			fmt.Fprint(w, `[{"name":"CC_O_20260820_000031","sequence":31}]`)
		default:
			http.Error(w, "no such camera", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewImageNameClient(srv.URL, Name, 1)
	_, err := client.Next(context.Background(), 3)
	assert.ErrorContains(t, err, "returned 1 ids, wanted 3")

	_, err = client.Next(context.Background(), 1)
	assert.ErrorContains(t, err, "image name service returned 404")
}

func TestObsIDController(t *testing.T) {
	assert.Equal(t, "CC", ObsID{Name: "CC_O_20260820_000042"}.Controller())
	assert.Equal(t, "bare", ObsID{Name: "bare"}.Controller())
}
