package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints (prefix /api/v1):")
	fmt.Println("  GET    /health                                 - Health check")
	fmt.Println("  GET    /stats                                  - Server statistics")
	fmt.Println("  POST   /sessions                               - Create a coaching session")
	fmt.Println("  GET    /sessions/{id}                          - Session state and view")
	fmt.Println("  DELETE /sessions/{id}                          - Drop a session")
	fmt.Println("  POST   /sessions/{id}/analysis                 - Analyze resume against job posting")
	fmt.Println("  PUT    /sessions/{id}/tab                      - Select a result tab")
	fmt.Println("  POST   /sessions/{id}/reports/{kind}           - Request a secondary report")
	fmt.Println("  POST   /sessions/{id}/quiz/weekly|final        - Start a quiz")
	fmt.Println("  PUT    /sessions/{id}/quiz/answers/{question}  - Answer a question")
	fmt.Println("  POST   /sessions/{id}/quiz/complete            - Grade the quiz")
	fmt.Println("  DELETE /sessions/{id}/quiz                     - Close the quiz")
	fmt.Println("  POST   /sessions/{id}/chat/toggle|messages     - Tutor chat")
	fmt.Println("  POST   /sessions/{id}/home                     - Back to upload")
	fmt.Println("  DELETE /sessions/{id}/notice/{seq}             - Dismiss a notice")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if n := s.keyCount(); n > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", n)
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to /sessions")
		if s.KeyWatcher != nil {
			fmt.Printf("API keys are refreshed from Vault every %s\n", s.KeyWatcher.pollInterval)
		}
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
