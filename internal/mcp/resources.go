package mcp

import (
	"encoding/json"
	"fmt"

	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/jsonrpc"
)

const resourceMIMEJSON = "application/json"

// resourceSet is the static descriptor provider behind resources/list and
// resources/read. Contents are fixed at startup.
type resourceSet struct {
	descriptors []resourceDescriptor
	contents    map[string]string
}

type resourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

func newResourceSet(cfg config.Config) *resourceSet {
	about, _ := json.Marshal(map[string]any{
		"name":    cfg.Server.Name,
		"version": cfg.Server.Version,
		"notes": []string{
			"One browsing session per process; tools share the same page.",
			"Responses for markdown and links stream the page content lazily.",
			"evaluate reports script failures via isError, not protocol errors.",
		},
	})
	guide, _ := json.Marshal(map[string]any{
		"tools": map[string]string{
			"goto":     "navigate to a URL (alias: navigate)",
			"search":   "navigate to search results for a query",
			"markdown": "render the current page as structured text",
			"links":    "list all hyperlink targets on the current page",
			"evaluate": "run JavaScript on the current page",
			"over":     "finish the task, echoing the final result",
		},
	})

	return &resourceSet{
		descriptors: []resourceDescriptor{
			{
				URI:         "pagelens://about",
				Name:        "About",
				Description: "Server identity and usage notes.",
				MIMEType:    resourceMIMEJSON,
			},
			{
				URI:         "pagelens://tools/guide",
				Name:        "Tool Guide",
				Description: "One-line summary of each tool in the catalog.",
				MIMEType:    resourceMIMEJSON,
			},
		},
		contents: map[string]string{
			"pagelens://about":       string(about),
			"pagelens://tools/guide": string(guide),
		},
	}
}

func (r *resourceSet) list() map[string]any {
	return map[string]any{"resources": r.descriptors}
}

func (r *resourceSet) read(uri string) (map[string]any, bool) {
	text, ok := r.contents[uri]
	if !ok {
		return nil, false
	}
	return map[string]any{
		"contents": []map[string]any{{
			"uri":      uri,
			"mimeType": resourceMIMEJSON,
			"text":     text,
		}},
	}, true
}

func (s *Server) handleResourceRead(req *jsonrpc.Request) {
	var params struct {
		URI string `json:"uri"`
	}
	if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil || params.URI == "" {
		s.respondError(req.ID, jsonrpc.CodeInvalidParams, "resources/read requires a uri param")
		return
	}

	contents, ok := s.resources.read(params.URI)
	if !ok {
		s.respondError(req.ID, jsonrpc.CodeInvalidParams, fmt.Sprintf("unknown resource: %s", params.URI))
		return
	}
	s.respond(req.ID, contents)
}
