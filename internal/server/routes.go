package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Videos
	mux.HandleFunc("/api/videos", s.handleVideosRoute)  // GET (list), POST (import)
	mux.HandleFunc("/api/videos/", s.handleVideoRoutes) // /{id} and subpaths

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// API routes - Search and chat
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler) // POST
	mux.HandleFunc("/api/chat", s.app.ChatHandler.AskHandler)        // POST

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleVideosRoute routes /api/videos requests (list and import)
func (s *Server) handleVideosRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.VideoHandler.ListHandler(w, r)
	case "POST":
		s.app.VideoHandler.ImportHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVideoRoutes routes /api/videos/{id} and its subresources
func (s *Server) handleVideoRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	parts := strings.SplitN(rest, "/", 3)
	videoID := parts[0]

	// /api/videos/{id}
	if len(parts) == 1 {
		switch r.Method {
		case "GET":
			s.app.VideoHandler.GetHandler(w, r, videoID)
		case "DELETE":
			s.app.VideoHandler.DeleteHandler(w, r, videoID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "transcript":
		if r.Method == "GET" {
			s.app.SummaryHandler.TranscriptHandler(w, r, videoID)
			return
		}
	case "summary":
		if r.Method == "GET" {
			s.app.SummaryHandler.GetHandler(w, r, videoID)
			return
		}
	case "index":
		switch r.Method {
		case "GET":
			s.app.SearchHandler.IndexStatusHandler(w, r, videoID)
			return
		case "POST":
			s.app.SearchHandler.EnsureIndexHandler(w, r, videoID)
			return
		}
	case "keyframes":
		if r.Method == "GET" {
			// /api/videos/{id}/keyframes/{filename}
			if len(parts) == 3 && parts[2] != "" {
				s.app.KeyframeHandler.ImageHandler(w, r, videoID, parts[2])
				return
			}
			s.app.KeyframeHandler.ListHandler(w, r, videoID)
			return
		}
	case "export":
		if r.Method == "GET" {
			s.app.ExportHandler.ExportHandler(w, r, videoID)
			return
		}
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListHandler(w, r)
	case "POST":
		s.app.JobHandler.CreateHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes routes /api/jobs/{id} and its actions
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if rest == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	jobID := parts[0]

	// /api/jobs/{id}
	if len(parts) == 1 {
		if r.Method == "GET" {
			s.app.JobHandler.GetHandler(w, r, jobID)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "cancel":
		if r.Method == "POST" {
			s.app.JobHandler.CancelHandler(w, r, jobID)
			return
		}
	case "retry":
		if r.Method == "POST" {
			s.app.JobHandler.RetryHandler(w, r, jobID)
			return
		}
	case "wait":
		if r.Method == "GET" {
			s.app.JobHandler.WaitHandler(w, r, jobID)
			return
		}
	case "stream":
		if r.Method == "GET" {
			s.app.JobHandler.StreamHandler(w, r, jobID)
			return
		}
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
