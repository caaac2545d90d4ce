package stats

// Counter exposes a collection's record count.
type Counter interface {
	Name() string
	Count() int
}

// Report holds the per-collection chunk counts.
type Report struct {
	PolicyChunkCount int `json:"policy_chunk_count"`
	UserChunkCount   int `json:"user_chunk_count"`
}

// Service reports collection sizes for observability.
type Service struct {
	policy Counter
	user   Counter
}

// New creates a stats service.
func New(policy, user Counter) *Service {
	return &Service{policy: policy, user: user}
}

// Report returns the current chunk counts of both collections.
func (s *Service) Report() Report {
	return Report{
		PolicyChunkCount: s.policy.Count(),
		UserChunkCount:   s.user.Count(),
	}
}
