package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/insighthink/internal/blobstore"
	"github.com/starford/insighthink/internal/content"
	"github.com/starford/insighthink/internal/ingest"
	"github.com/starford/insighthink/internal/testutil"
)

func testServer(t *testing.T) (*Server, *blobstore.Disk) {
	t.Helper()
	store := testutil.TestStore(t, content.Collections...)
	blobs := testutil.TestBlobs(t)
	return New(content.NewServices(store, blobs).Resources()), blobs
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_content":
		result, err = srv.listContent(ctx, req)
	case "get_content":
		result, err = srv.getContent(ctx, req)
	case "create_content":
		result, err = srv.createContent(ctx, req)
	case "attach_image":
		result, err = srv.attachImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func resultJSON(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return out
}

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG(200))
}

func TestCreateAndGetContent(t *testing.T) {
	srv, blobs := testServer(t)

	r := callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "books",
		"fields": map[string]interface{}{
			"title":     "Dune",
			"author":    "Herbert",
			"genres":    []interface{}{"Fiction", "Sci-Fi"},
			"pageCount": 412,
			"chapters":  []interface{}{map[string]interface{}{"title": "Arrakis"}},
		},
		"assets": map[string]interface{}{"coverImage": pngDataURI()},
	})
	book := resultJSON(t, r)
	if book["hasCover"] != true {
		t.Errorf("hasCover = %v", book["hasCover"])
	}
	if book["pageCount"] != float64(412) {
		t.Errorf("pageCount = %v", book["pageCount"])
	}
	if chapters := book["chapters"].([]any); len(chapters) != 1 {
		t.Errorf("chapters = %v", book["chapters"])
	}
	if n := testutil.BlobCount(t, blobs); n != 1 {
		t.Errorf("blobs = %d, want 1", n)
	}

	r = callTool(t, srv, "get_content", map[string]interface{}{"collection": "books", "id": book["id"]})
	if got := resultJSON(t, r); got["title"] != "Dune" {
		t.Errorf("title = %v", got["title"])
	}
}

func TestCreateContentValidation(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "books",
		"fields":     map[string]interface{}{"title": "No author"},
	})
	if !r.IsError || !strings.Contains(resultText(r), "author") {
		t.Errorf("result = %q, want missing author error", resultText(r))
	}

	r = callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "podcasts",
		"fields":     map[string]interface{}{"title": "x"},
	})
	if !r.IsError {
		t.Error("expected error for unknown collection")
	}

	r = callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "posts",
		"fields":     map[string]interface{}{"title": "anonymous"},
	})
	if !r.IsError {
		t.Error("expected error for anonymous post")
	}
}

func TestListContent(t *testing.T) {
	srv, _ := testServer(t)
	for _, title := range []string{"Go talk", "Rust talk"} {
		callTool(t, srv, "create_content", map[string]interface{}{
			"collection": "videos",
			"fields":     map[string]interface{}{"title": title, "tags": "talks"},
		})
	}

	r := callTool(t, srv, "list_content", map[string]interface{}{"collection": "videos", "query": "rust"})
	page := resultJSON(t, r)
	if page["total"] != float64(1) {
		t.Errorf("total = %v, want 1", page["total"])
	}
}

func TestAttachImageReplacesPrevious(t *testing.T) {
	srv, blobs := testServer(t)
	r := callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "curated",
		"fields":     map[string]interface{}{"title": "Pick"},
	})
	id := resultJSON(t, r)["id"]

	for i := 0; i < 2; i++ {
		r = callTool(t, srv, "attach_image", map[string]interface{}{
			"collection": "curated", "id": id, "field": "thumbnail", "source": pngDataURI(),
		})
		doc := resultJSON(t, r)
		if !strings.HasPrefix(doc["thumbnailUrl"].(string), "/api/files/") {
			t.Errorf("thumbnailUrl = %v", doc["thumbnailUrl"])
		}
	}
	if n := testutil.BlobCount(t, blobs); n != 1 {
		t.Errorf("blobs = %d, want 1", n)
	}

	r = callTool(t, srv, "attach_image", map[string]interface{}{
		"collection": "curated", "id": id, "field": "coverImage", "source": pngDataURI(),
	})
	if !r.IsError {
		t.Error("expected error for unknown asset field")
	}
}

func TestAttachImageRejectsBlockedHosts(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "curated",
		"fields":     map[string]interface{}{"title": "Pick"},
	})
	id := resultJSON(t, r)["id"]

	for _, source := range []string{
		"http://127.0.0.1/x.png",
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.8/x.png",
		"file:///etc/passwd",
	} {
		r = callTool(t, srv, "attach_image", map[string]interface{}{
			"collection": "curated", "id": id, "field": "thumbnail", "source": source,
		})
		if !r.IsError {
			t.Errorf("%s: expected error", source)
		}
	}
}

func TestBlockedIPsCheckEveryAddress(t *testing.T) {
	public := net.ParseIP("93.184.216.34")
	tests := []struct {
		name    string
		ips     []net.IP
		blocked bool
	}{
		{"public only", []net.IP{public, net.ParseIP("2606:2800:220:1::")}, false},
		{"loopback after public", []net.IP{public, net.ParseIP("127.0.0.1")}, true},
		{"private after public", []net.IP{public, net.ParseIP("10.1.2.3")}, true},
		{"metadata after public", []net.IP{public, net.ParseIP("169.254.169.254")}, true},
		{"ipv6 loopback", []net.IP{public, net.IPv6loopback}, true},
	}
	for _, tt := range tests {
		err := checkBlockedIPs("rebind.example.com", tt.ips)
		if (err != nil) != tt.blocked {
			t.Errorf("%s: err = %v, blocked = %v", tt.name, err, tt.blocked)
		}
	}
}

func TestAttachImageUsesFetcher(t *testing.T) {
	srv, _ := testServer(t)
	srv.fetch = func(_ context.Context, field, source string) (*ingest.File, error) {
		return ingest.NewFile(field, "remote.png", "image/png", testutil.PNG(64)), nil
	}
	r := callTool(t, srv, "create_content", map[string]interface{}{
		"collection": "articles",
		"fields":     map[string]interface{}{"title": "Essay"},
		"assets":     map[string]interface{}{"coverImage": "https://example.com/remote.png"},
	})
	doc := resultJSON(t, r)
	if !strings.HasPrefix(doc["coverImageUrl"].(string), "/api/files/") {
		t.Errorf("coverImageUrl = %v", doc["coverImageUrl"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		"my photo (1).png": "my_photo__1_.png",
		"ok-name_1.jpg":    "ok-name_1.jpg",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := filenameFromURL("https://example.com/a/b/cover.webp?x=1"); got != "cover.webp" {
		t.Errorf("filenameFromURL = %q", got)
	}
}

func TestContentFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readContentFormat(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	for _, name := range srv.collections() {
		if !strings.Contains(text, name) {
			t.Errorf("format does not mention %s", name)
		}
	}
}
