package api

import "fmt"

// maxRequests bounds the instances accepted over HTTP; the arc variables
// grow with the cube of the node count.
const maxRequests = 64

func validateSolveRequest(req *SolveRequest) error {
	if req.Instance == nil {
		return fmt.Errorf("missing instance")
	}
	f := req.Instance
	if len(f.Requests) == 0 {
		return fmt.Errorf("instance has no requests")
	}
	if len(f.Requests) > maxRequests {
		return fmt.Errorf("instance has %d requests (max %d)", len(f.Requests), maxRequests)
	}
	if len(f.Vehicles) == 0 {
		return fmt.Errorf("instance has no vehicles")
	}
	return nil
}
