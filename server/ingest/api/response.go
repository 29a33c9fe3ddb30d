package api

type TokenResponse struct {
	Token     string `json:"token"`
	ServiceID string `json:"service_id"`
	Role      string `json:"role"`
}

// MessageResponse reports what happened to one webhook message:
// recorded always, admitted only when the sampling policy picked it up.
type MessageResponse struct {
	Recorded bool   `json:"recorded"`
	Admitted bool   `json:"admitted"`
	JobID    string `json:"job_id,omitempty"`
}
