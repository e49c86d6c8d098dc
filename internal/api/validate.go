package api

import (
	"fmt"
	"net/url"

	"toptw/internal/model"
	"toptw/internal/opt"
)

const maxIterations = 100000

func validateSolveRequest(req *model.SolveRequest) error {
	if (req.Problem == nil) == (req.InstanceText == "") {
		return fmt.Errorf("exactly one of problem or instanceText is required")
	}
	if req.Problem != nil {
		if req.Problem.Vehicles < 1 {
			return fmt.Errorf("problem.vehicles must be >= 1")
		}
		if len(req.Problem.Nodes) == 0 {
			return fmt.Errorf("problem.nodes must start with the depot")
		}
	}
	p := req.Params
	if p.Policy != "" {
		if _, err := opt.ParsePolicy(p.Policy); err != nil {
			return err
		}
	}
	if p.RCLSize < 0 {
		return fmt.Errorf("rclSize must be >= 0")
	}
	if p.Iterations < 0 || p.Iterations > maxIterations {
		return fmt.Errorf("iterations must be in [0,%d]", maxIterations)
	}
	if p.Alpha != nil && (*p.Alpha < 0 || *p.Alpha > 1) {
		return fmt.Errorf("alpha must be in [0,1]")
	}
	if p.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
	}
	if req.CallbackSecret != "" && req.CallbackURL == "" {
		return fmt.Errorf("callbackSecret requires callbackUrl")
	}
	return nil
}
