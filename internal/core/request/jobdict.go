package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/reproc/internal/models"
)

// ErrMultipleSequences is returned when a request with more than one
// processing sequence is submitted. Multi-sequence submission is not
// supported by the remote job description format.
var ErrMultipleSequences = errors.New("requests with multiple sequences are not supported")

// JobDescription builds the flat key-value document submitted to the
// remote workflow management service for the given request.
func JobDescription(req *models.Request, sub *models.Subcampaign) (map[string]any, error) {
	if len(req.Sequences) == 0 {
		return nil, fmt.Errorf("request %s has no sequences", req.PrepID)
	}
	if len(req.Sequences) > 1 {
		return nil, ErrMultipleSequences
	}

	dataset, era, ok := models.ParseInputDataset(req.InputDataset)
	if !ok {
		return nil, fmt.Errorf("request %s has a malformed input dataset %q", req.PrepID, req.InputDataset)
	}

	sequence := req.Sequences[0]
	job := map[string]any{
		"RequestType":      "ReReco",
		"PrepID":           req.PrepID,
		"Release":          req.Release,
		"ScramArch":        sub.ScramArch,
		"RequestPriority":  req.Priority,
		"InputDataset":     req.InputDataset,
		"Campaign":         strings.SplitN(req.Subcampaign, "-", 2)[0],
		"Memory":           req.Memory,
		"AcquisitionEra":   era,
		"ProcessingString": req.ProcessingString,
		"SizePerEvent":     req.SizePerEvent,
		"TimePerEvent":     req.TimePerEvent,
		"RequestString":    fmt.Sprintf("%s_%s_%s", era, dataset, req.ProcessingString),
		"EnableHarvesting": false,
		"RunWhitelist":     req.Runs,
		"RunBlacklist":     []int{},
		"GlobalTag":        sequence.Conditions,
		"Multicore":        sequence.NThreads,
		"Scenario":         sequence.Scenario,
	}
	if sequence.ConfigID != "" {
		job["ConfigCacheID"] = sequence.ConfigID
	}
	if sequence.HarvestingConfigID != "" {
		job["DQMConfigCacheID"] = sequence.HarvestingConfigID
	}
	return job, nil
}
