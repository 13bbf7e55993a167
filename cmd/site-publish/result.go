package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuya-takeyama/site-publish/pkg/deployer"
	"github.com/yuya-takeyama/site-publish/pkg/syncer"
)

// SyncResult represents the outcome of one run
type SyncResult struct {
	Deployment DeploymentInfo `json:"deployment"`
	Files      []ResultFile   `json:"files"`
	Errors     []ErrorFile    `json:"errors"`
	Summary    ResultSummary  `json:"summary"`
	Fatal      string         `json:"fatal,omitempty"`
}

type DeploymentInfo struct {
	Endpoint         string   `json:"endpoint"`
	LocalRoot        string   `json:"local_root"`
	RemoteRoot       string   `json:"remote_root"`
	DryRun           bool     `json:"dry_run"`
	StartDir         string   `json:"start_dir,omitempty"`
	FinalDir         string   `json:"final_dir,omitempty"`
	Before           []string `json:"before"`
	After            []string `json:"after"`
	LandingPage      string   `json:"landing_page"`
	LandingPageFound bool     `json:"landing_page_found"`
	DurationMillis   int64    `json:"duration_ms"`
}

type ResultFile struct {
	Action string `json:"action"` // "uploaded", "created", "existed"
	Source string `json:"source"`
	Target string `json:"target"`
	Bytes  int64  `json:"bytes,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

type ErrorFile struct {
	Action string `json:"action"` // "upload", "mkdir"
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

type ResultSummary struct {
	Attempted int   `json:"attempted"`
	Succeeded int   `json:"succeeded"`
	Visited   int   `json:"visited"`
	Uploaded  int   `json:"uploaded"`
	Created   int   `json:"created"`
	Existed   int   `json:"existed"`
	Failed    int   `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

func buildSyncResult(report *deployer.Report, runErr error) SyncResult {
	result := SyncResult{
		Files:  []ResultFile{},
		Errors: []ErrorFile{},
	}
	if runErr != nil {
		result.Fatal = runErr.Error()
	}
	if report == nil {
		return result
	}

	result.Deployment = DeploymentInfo{
		Endpoint:         report.Endpoint,
		LocalRoot:        getAbsolutePath(report.LocalRoot),
		RemoteRoot:       report.RemoteRoot,
		DryRun:           report.DryRun,
		StartDir:         report.StartDir,
		FinalDir:         report.FinalDir,
		Before:           report.Before,
		After:            report.After,
		LandingPage:      report.LandingPage,
		LandingPageFound: report.LandingPageFound,
		DurationMillis:   report.Duration.Milliseconds(),
	}

	if report.Result == nil {
		return result
	}

	result.Summary.Attempted = report.Result.Attempted
	result.Summary.Succeeded = report.Result.Succeeded
	result.Summary.Visited = report.Result.Visited()
	result.Summary.Bytes = report.Result.BytesUploaded()

	for _, item := range report.Result.Items {
		source := getAbsolutePath(item.Target.LocalPath)
		target := item.Target.RemotePath

		if !item.OK() {
			result.Errors = append(result.Errors, ErrorFile{
				Action: getActionName(item.Kind),
				Kind:   string(item.ErrKind),
				Source: source,
				Target: target,
				Error:  item.Err.Error(),
			})
			result.Summary.Failed++
			continue
		}

		file := ResultFile{Source: source, Target: target}
		switch {
		case item.Kind == syncer.KindFile:
			file.Action = "uploaded"
			file.Bytes = item.Bytes
			file.SHA256 = item.SHA256
			result.Summary.Uploaded++
		case item.DirectoryExisted:
			file.Action = "existed"
			result.Summary.Existed++
		default:
			file.Action = "created"
			result.Summary.Created++
		}
		result.Files = append(result.Files, file)
	}

	return result
}

func writeSyncResult(path string, result SyncResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func getActionName(kind syncer.Kind) string {
	if kind == syncer.KindDirectory {
		return "mkdir"
	}
	return "upload"
}

func getAbsolutePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // fallback to original path
	}
	return absPath
}
