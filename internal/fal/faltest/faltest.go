// Package faltest provides an in-process fake of the fal storage and queue APIs for tests.
package faltest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
)

const App = "clarityai/crystal-upscaler"

type Upload struct {
	ContentType string
	Data        []byte
}

// Server fakes fal: Rest serves storage and result files, Queue serves the job queue.
// Knobs must be set before the code under test runs.
type Server struct {
	Rest  *httptest.Server
	Queue *httptest.Server

	APIKey string

	// Result is returned by the response endpoint; nil means one image at ResultURL().
	Result any
	// ResultImage is served at ResultURL().
	ResultImage []byte
	// PendingPolls is the number of IN_PROGRESS answers before COMPLETED.
	PendingPolls int
	// JobError is put into the COMPLETED status when set.
	JobError string
	// InitiateStatus, SubmitStatus and FileStatus override the success codes when non-zero.
	InitiateStatus int
	SubmitStatus   int
	FileStatus     int
	// OmitURLs drops status_url and response_url from the submit answer.
	OmitURLs bool

	hits  atomic.Int64
	polls atomic.Int64

	mu        sync.Mutex
	uploads   map[string]Upload
	submitted []map[string]any
}

// New starts both servers and closes them when the test ends.
func New(t testing.TB, apiKey string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		APIKey:      apiKey,
		ResultImage: []byte("upscaled-bytes"),
		uploads:     make(map[string]Upload),
	}

	s.Rest = httptest.NewServer(s.restEngine())
	s.Queue = httptest.NewServer(s.queueEngine())
	t.Cleanup(func() {
		s.Rest.Close()
		s.Queue.Close()
	})
	return s
}

func (s *Server) ResultURL() string {
	return s.Rest.URL + "/files/result.png"
}

// Hits counts every request received by either server.
func (s *Server) Hits() int64 {
	return s.hits.Load()
}

// Polls counts status requests.
func (s *Server) Polls() int64 {
	return s.polls.Load()
}

func (s *Server) Uploads() map[string]Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Upload, len(s.uploads))
	for k, v := range s.uploads {
		out[k] = v
	}
	return out
}

func (s *Server) Submitted() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.submitted...)
}

func (s *Server) count(c *gin.Context) {
	s.hits.Add(1)
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if c.GetHeader("Authorization") != "Key "+s.APIKey {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid credentials"})
		return
	}
	c.Next()
}

func (s *Server) restEngine() *gin.Engine {
	r := gin.New()
	r.Use(s.count)

	r.POST("/storage/upload/initiate", s.auth, func(c *gin.Context) {
		if s.InitiateStatus != 0 {
			c.JSON(s.InitiateStatus, gin.H{"detail": "upload rejected"})
			return
		}
		var req struct {
			ContentType string `json:"content_type"`
			FileName    string `json:"file_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || c.Query("storage_type") == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "bad initiate request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"upload_url": s.Rest.URL + "/upload/" + req.FileName,
			"file_url":   s.Rest.URL + "/files/" + req.FileName,
		})
	})

	r.PUT("/upload/:name", func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.uploads[c.Param("name")] = Upload{ContentType: c.GetHeader("Content-Type"), Data: data}
		s.mu.Unlock()
		c.Status(http.StatusOK)
	})

	r.GET("/files/:name", func(c *gin.Context) {
		if s.FileStatus != 0 {
			c.Status(s.FileStatus)
			return
		}
		if c.Param("name") == "result.png" {
			c.Data(http.StatusOK, "image/webp", s.ResultImage)
			return
		}
		s.mu.Lock()
		up, ok := s.uploads[c.Param("name")]
		s.mu.Unlock()
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, up.ContentType, up.Data)
	})

	return r
}

func (s *Server) queueEngine() *gin.Engine {
	r := gin.New()
	r.Use(s.count, s.auth)

	base := "/" + App
	r.POST(base, func(c *gin.Context) {
		if s.SubmitStatus != 0 {
			c.JSON(s.SubmitStatus, gin.H{"detail": []gin.H{{"msg": "invalid arguments"}}})
			return
		}
		var args map[string]any
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "bad json"})
			return
		}
		s.mu.Lock()
		s.submitted = append(s.submitted, args)
		id := fmt.Sprintf("req-%d", len(s.submitted))
		s.mu.Unlock()

		resp := gin.H{"request_id": id}
		if !s.OmitURLs {
			resp["status_url"] = s.Queue.URL + base + "/requests/" + id + "/status"
			resp["response_url"] = s.Queue.URL + base + "/requests/" + id
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET(base+"/requests/:id/status", func(c *gin.Context) {
		n := s.polls.Add(1)
		logs := []gin.H{{"message": "poll " + fmt.Sprint(n), "level": "INFO"}}
		if c.Query("logs") != "1" {
			logs = nil
		}
		if n <= int64(s.PendingPolls) {
			status := "IN_PROGRESS"
			if n == 1 {
				status = "IN_QUEUE"
			}
			c.JSON(http.StatusAccepted, gin.H{"status": status, "queue_position": 0, "logs": logs})
			return
		}
		resp := gin.H{"status": "COMPLETED", "logs": logs}
		if s.JobError != "" {
			resp["error"] = s.JobError
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET(base+"/requests/:id", func(c *gin.Context) {
		result := s.Result
		if result == nil {
			result = gin.H{"images": []gin.H{{"url": s.ResultURL(), "content_type": "image/png"}}}
		}
		c.JSON(http.StatusOK, result)
	})

	return r
}
