package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const titanicCSV = "PassengerId,Survived,Pclass,Name,Sex,Age\n" +
	"1,0,3,\"Braund, Mr. Owen Harris\",male,22\n" +
	"2,1,1,\"Cumings, Mrs. John Bradley\",female,38\n"

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/titanic.csv", r.URL.Path)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(titanicCSV))
	}))
	defer srv.Close()

	df, err := Fetch(context.Background(), srv.URL+"/data/titanic.csv", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.Contains(t, df.Names(), "Name")
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL+"/missing.csv", time.Second)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetch_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(titanicCSV))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, srv.URL+"/titanic.csv", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
