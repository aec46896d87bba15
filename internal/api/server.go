package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ShardBoard/internal/attestation"
	"ShardBoard/internal/auth"
	"ShardBoard/internal/chain"
	"ShardBoard/internal/logger"
	"ShardBoard/internal/runtime"
	"ShardBoard/internal/state"
)

const (
	// maxOpSize is the maximum signed operation size in bytes.
	maxOpSize = 64 << 10 // 64 KB
)

// Submitter includes operations in blocks.
type Submitter interface {
	Submit(ctx context.Context, op chain.Operation) (*runtime.Receipt, error)
	Block() state.BlockNumber
	QueueDepth() int
}

// Reader gives read access to the committed state.
type Reader interface {
	View(fn func(st *state.State) error) error
	Engine() *attestation.Engine
}

// Server is the HTTP API server.
type Server struct {
	addr      string              // addr is the HTTP listen address
	submitter Submitter           // submitter orders operations into blocks
	reader    Reader              // reader serves queries
	gatherer  prometheus.Gatherer // gatherer backs /metrics (route absent if nil)
	server    *http.Server        // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, submitter Submitter, reader Reader, gatherer prometheus.Gatherer) *Server {
	return &Server{
		addr:      addr,
		submitter: submitter,
		reader:    reader,
		gatherer:  gatherer,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /op", s.handleSubmitOp)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /boards", s.handleBoards)
	mux.HandleFunc("GET /boards/{board}", s.handleBoard)
	mux.HandleFunc("GET /boards/{board}/threads", s.handleThreads)
	mux.HandleFunc("GET /boards/{board}/threads/{thread}", s.handleThread)
	mux.HandleFunc("GET /boards/{board}/threads/{thread}/posts", s.handlePosts)
	mux.HandleFunc("GET /boards/{board}/threads/{thread}/posts/{post}", s.handlePost)
	mux.HandleFunc("GET /boards/{board}/shards/{shard}/attesters", s.handleAttesters)
	mux.HandleFunc("GET /boards/{board}/buffer", s.handleBuffer)
	mux.HandleFunc("GET /boards/{board}/buffer/{index}", s.handleBuffered)
	mux.HandleFunc("GET /accounts/{account}", s.handleAccount)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleSubmitOp handles POST /op requests. The body is a SignedOperation;
// the response is the receipt once a block includes it.
func (s *Server) handleSubmitOp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOpSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty operation")
		return
	}

	env, err := auth.Open(body)
	if errors.Is(err, auth.ErrBadSignature) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid operation: %v", err))
		return
	}

	call, seq, err := runtime.Decode(env.Operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid operation: %v", err))
		return
	}

	rc, err := s.submitter.Submit(r.Context(), chain.Operation{
		Origin: runtime.Signed(env.Signer),
		Seq:    seq,
		Call:   call,
	})

	switch {
	case rc != nil:
		logger.Debug("op included",
			"kind", rc.Kind,
			"signer", env.Signer.Short(),
			"block", rc.Block,
		)
		writeJSON(w, statusOf(err), rc)

	case errors.Is(err, chain.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())

	case r.Context().Err() != nil:
		writeError(w, http.StatusRequestTimeout, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NodeStatus{
		Block:      s.submitter.Block(),
		QueueDepth: s.submitter.QueueDepth(),
	})
}

// handleBoards handles GET /boards requests.
func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	boards := []BoardView{}

	err := s.reader.View(func(st *state.State) error {
		count, err := st.BoardCount()
		if err != nil {
			return err
		}

		for i := range count {
			idx := state.BoardIndex(i)

			m, err := st.Board(idx)
			if err != nil {
				return err
			}
			boards = append(boards, newBoardView(idx, m))
		}

		return nil
	})

	respond(w, boards, err)
}

// handleBoard handles GET /boards/{board} requests.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	var view BoardView

	err := s.reader.View(func(st *state.State) error {
		m, err := st.Board(b)
		if err != nil {
			return err
		}
		view = newBoardView(b, m)
		return nil
	})

	respond(w, view, err)
}

// handleThreads handles GET /boards/{board}/threads requests.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	threads := []ThreadView{}

	err := s.reader.View(func(st *state.State) error {
		if _, err := st.Board(b); err != nil {
			return err
		}

		entries, err := st.Threads(b)
		if err != nil {
			return err
		}

		for _, e := range entries {
			threads = append(threads, ThreadView{
				Index:     e.Index,
				BumpTime:  e.Metadata.BumpTime,
				PostCount: e.Metadata.PostCount,
			})
		}
		return nil
	})

	respond(w, threads, err)
}

// handleThread handles GET /boards/{board}/threads/{thread} requests.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	t, ok := pathIndex[state.ThreadIndex](w, r, "thread", 16)
	if !ok {
		return
	}

	var view ThreadView

	err := s.reader.View(func(st *state.State) error {
		m, err := st.Thread(b, t)
		if err != nil {
			return err
		}
		view = ThreadView{Index: t, BumpTime: m.BumpTime, PostCount: m.PostCount}
		return nil
	})

	respond(w, view, err)
}

// handlePost handles GET /boards/{board}/threads/{thread}/posts/{post} requests.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	t, ok := pathIndex[state.ThreadIndex](w, r, "thread", 16)
	if !ok {
		return
	}

	p, ok := pathIndex[state.PostIndex](w, r, "post", 16)
	if !ok {
		return
	}

	var view PostView

	err := s.reader.View(func(st *state.State) error {
		data, err := st.Post(b, t, p)
		if err != nil {
			return err
		}
		view = newPostView(uint16(p), t, data)
		return nil
	})

	respond(w, view, err)
}

// handlePosts handles GET /boards/{board}/threads/{thread}/posts requests.
func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	t, ok := pathIndex[state.ThreadIndex](w, r, "thread", 16)
	if !ok {
		return
	}

	posts := []PostView{}

	err := s.reader.View(func(st *state.State) error {
		if _, err := st.Thread(b, t); err != nil {
			return err
		}

		entries, err := st.Posts(b, t)
		if err != nil {
			return err
		}

		for _, e := range entries {
			posts = append(posts, newPostView(uint16(e.Index), t, &e.Data))
		}
		return nil
	})

	respond(w, posts, err)
}

// handleAttesters handles GET /boards/{board}/shards/{shard}/attesters requests.
func (s *Server) handleAttesters(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	shard, ok := pathIndex[state.ShardIndex](w, r, "shard", 8)
	if !ok {
		return
	}

	var members []string

	err := s.reader.View(func(st *state.State) error {
		list, err := st.Attesters(b, shard)
		if err != nil {
			return err
		}
		members = accountsView(list)
		return nil
	})

	respond(w, members, err)
}

// handleBuffer handles GET /boards/{board}/buffer requests.
func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	posts := []PostView{}

	err := s.reader.View(func(st *state.State) error {
		if _, err := st.Board(b); err != nil {
			return err
		}

		entries, err := st.BufferedPosts(b)
		if err != nil {
			return err
		}

		for _, e := range entries {
			posts = append(posts, newPostView(uint16(e.Index), e.Post.Thread, &e.Post.Data))
		}
		return nil
	})

	respond(w, posts, err)
}

// handleBuffered handles GET /boards/{board}/buffer/{index} requests.
func (s *Server) handleBuffered(w http.ResponseWriter, r *http.Request) {
	b, ok := pathIndex[state.BoardIndex](w, r, "board", 16)
	if !ok {
		return
	}

	i, ok := pathIndex[state.BufferIndex](w, r, "index", 16)
	if !ok {
		return
	}

	var view StatusView

	err := s.reader.View(func(st *state.State) error {
		status, err := s.reader.Engine().Status(st, b, i)
		if err != nil {
			return err
		}
		view = newStatusView(i, status, s.submitter.Block())
		return nil
	})

	respond(w, view, err)
}

// handleAccount handles GET /accounts/{account} requests.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := auth.ParseAccount(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var seq uint64

	err = s.reader.View(func(st *state.State) error {
		var err error
		seq, err = st.Sequence(account)
		return err
	})

	respond(w, AccountView{Account: account.String(), Sequence: seq}, err)
}

// pathIndex parses a numeric path parameter of the given bit size.
func pathIndex[T ~uint8 | ~uint16](w http.ResponseWriter, r *http.Request, name string, bits int) (T, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, bits)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, r.PathValue(name)))
		return 0, false
	}

	return T(v), true
}

// respond writes data, or the error with its mapped status.
func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch state.Kind(err) {
	case state.ErrNotFound:
		return http.StatusNotFound
	case state.ErrInvalidTransition:
		return http.StatusConflict
	case state.ErrCapacityExceeded:
		return http.StatusInsufficientStorage
	case state.ErrOverflow, state.ErrCommitmentMismatch:
		return http.StatusUnprocessableEntity
	case state.ErrUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
