package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/index"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type StartResearchArgs struct {
	Query   string `json:"query" jsonschema:"the research question"`
	Breadth *int   `json:"breadth,omitempty" jsonschema:"number of queries per level (default 4)"`
	Depth   *int   `json:"depth,omitempty" jsonschema:"number of recursion levels (default 2)"`
}

type StartResearchResult struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type GetResearchArgs struct {
	JobID string `json:"jobId" jsonschema:"id returned by start_research"`
}

type GetResearchResult struct {
	JobID    string                  `json:"jobId"`
	Status   string                  `json:"status"`
	Progress *research.ProgressState `json:"progress,omitempty"`
	Report   string                  `json:"report,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

type SearchSourcesArgs struct {
	Query string `json:"query" jsonschema:"what to look for in the collected sources"`
	JobID string `json:"jobId,omitempty" jsonschema:"restrict the search to one research job"`
	TopK  int    `json:"topK,omitempty" jsonschema:"number of chunks to return (default 5)"`
}

type SearchSourcesResult struct {
	Chunks []index.Chunk `json:"chunks"`
}

type ListSourcesArgs struct {
	JobID string `json:"jobId" jsonschema:"id of a completed research job"`
}

// MCPTools exposes the research service as MCP tools.
type MCPTools struct {
	Service *Service
}

// NewMCPServer builds the MCP server with the research tools registered.
func NewMCPServer(s *Service) *mcp.Server {
	tools := &MCPTools{Service: s}
	server := mcp.NewServer(&mcp.Implementation{Name: "deep-research-mcp", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_research",
		Description: "Start a deep research job on a question. Returns the job id; poll it with get_research.",
	}, tools.StartResearch)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_research",
		Description: "Get the status, progress and, once completed, the final report of a research job.",
	}, tools.GetResearch)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_sources",
		Description: "Semantic search over the source contents collected by research jobs.",
	}, tools.SearchSources)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sources",
		Description: "List every indexed source chunk of a research job in document order.",
	}, tools.ListSources)

	return server
}

// NewMCPHandler serves the MCP server over streamable HTTP.
func NewMCPHandler(s *Service) http.Handler {
	server := NewMCPServer(s)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func (t *MCPTools) StartResearch(ctx context.Context, _ *mcp.CallToolRequest, args StartResearchArgs) (*mcp.CallToolResult, StartResearchResult, error) {
	if strings.TrimSpace(args.Query) == "" {
		return nil, StartResearchResult{}, fmt.Errorf("query is required")
	}
	job, err := t.Service.CreateJob(ctx, CreateJobRequest{Query: args.Query, Breadth: args.Breadth, Depth: args.Depth})
	if err != nil {
		return nil, StartResearchResult{}, err
	}

	out := StartResearchResult{JobID: job.ID.String(), Status: string(job.Status)}
	return textResult(fmt.Sprintf("Started research job %s", out.JobID)), out, nil
}

func (t *MCPTools) GetResearch(ctx context.Context, _ *mcp.CallToolRequest, args GetResearchArgs) (*mcp.CallToolResult, GetResearchResult, error) {
	id, err := uuid.Parse(args.JobID)
	if err != nil {
		return nil, GetResearchResult{}, fmt.Errorf("invalid job id %q", args.JobID)
	}
	job, err := t.Service.GetJob(ctx, id)
	if err != nil {
		return nil, GetResearchResult{}, err
	}

	out := GetResearchResult{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	}
	if len(job.Progress) > 0 {
		var progress research.ProgressState
		if err := json.Unmarshal(job.Progress, &progress); err == nil {
			out.Progress = &progress
		}
	}
	if job.Report != nil {
		out.Report = *job.Report
	}
	if job.Error != nil {
		out.Error = *job.Error
	}

	text := fmt.Sprintf("Job %s is %s.", out.JobID, out.Status)
	if out.Report != "" {
		text = out.Report
	}
	return textResult(text), out, nil
}

func (t *MCPTools) SearchSources(ctx context.Context, _ *mcp.CallToolRequest, args SearchSourcesArgs) (*mcp.CallToolResult, SearchSourcesResult, error) {
	var jobID *uuid.UUID
	if args.JobID != "" {
		id, err := uuid.Parse(args.JobID)
		if err != nil {
			return nil, SearchSourcesResult{}, fmt.Errorf("invalid job id %q", args.JobID)
		}
		jobID = &id
	}
	if args.TopK <= 0 {
		args.TopK = 5
	}

	chunks, err := t.Service.SearchSources(ctx, args.Query, jobID, args.TopK)
	if err != nil {
		return nil, SearchSourcesResult{}, err
	}

	return textResult(formatChunks(chunks)), SearchSourcesResult{Chunks: chunks}, nil
}

func (t *MCPTools) ListSources(ctx context.Context, _ *mcp.CallToolRequest, args ListSourcesArgs) (*mcp.CallToolResult, SearchSourcesResult, error) {
	id, err := uuid.Parse(args.JobID)
	if err != nil {
		return nil, SearchSourcesResult{}, fmt.Errorf("invalid job id %q", args.JobID)
	}
	chunks, err := t.Service.ListSources(ctx, id)
	if err != nil {
		return nil, SearchSourcesResult{}, err
	}
	return textResult(formatChunks(chunks)), SearchSourcesResult{Chunks: chunks}, nil
}

func formatChunks(chunks []index.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[Job]: %s\n[Document]: %d\n[Chunk]: %d\n[Content]: %s", c.JobID, c.Document, c.Chunk, c.Content))
	}
	return sb.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
