package synctree

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
	"github.com/sorenbs/ai-chatbot-full/internal/tree"
)

func folder(path, name string) *models.TreeNode {
	return &models.TreeNode{Name: name, Type: models.TypeFolder, Path: path, Children: []*models.TreeNode{}}
}

func file(path, name string) *models.TreeNode {
	return &models.TreeNode{Name: name, Type: models.TypeFile, Path: path}
}

// fakeTransport serves canned listings per tenant and path.
type fakeTransport struct {
	mu       sync.Mutex
	listings map[string][]*models.TreeNode // "tenant:path"
	failures map[string]error
	calls    map[string]int
	files    map[string]string

	// When set, ListFiles blocks on gate for the listed keys.
	gate    chan struct{}
	gated   map[string]bool
	started chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		listings: make(map[string][]*models.TreeNode),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		files:    make(map[string]string),
		gated:    make(map[string]bool),
	}
}

func (f *fakeTransport) set(tenant, path string, nodes ...*models.TreeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[tenant+":"+path] = nodes
	delete(f.failures, tenant+":"+path)
}

func (f *fakeTransport) fail(tenant, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[tenant+":"+path] = err
}

func (f *fakeTransport) callCount(tenant, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenant+":"+path]
}

func (f *fakeTransport) ListFiles(ctx context.Context, tenant, path string) ([]*models.TreeNode, error) {
	key := tenant + ":" + path

	f.mu.Lock()
	f.calls[key]++
	gate, gated, started := f.gate, f.gated[key], f.started
	f.mu.Unlock()

	if gated {
		if started != nil {
			started <- key
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[key]; err != nil {
		return nil, err
	}
	nodes, ok := f.listings[key]
	if !ok {
		return nil, errors.New("not found")
	}
	out := make([]*models.TreeNode, len(nodes))
	for i, n := range nodes {
		c := *n
		out[i] = &c
	}
	return out, nil
}

func (f *fakeTransport) ReadFile(ctx context.Context, tenant, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[tenant+":"+path]
	if !ok {
		return "", errors.New("not found")
	}
	return c, nil
}

func (f *fakeTransport) WriteFile(ctx context.Context, tenant, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[tenant+":"+path] = content
	return nil
}

func seeded() *fakeTransport {
	ft := newFakeTransport()
	ft.set("p1", RootPath, folder("a", "a"), folder("b", "b"), file("c.txt", "c.txt"))
	ft.set("p1", "a", folder("a/x", "x"), file("a/y.txt", "y.txt"))
	ft.set("p1", "b", file("b/z.txt", "z.txt"))
	ft.set("p2", RootPath, file("other.txt", "other.txt"))
	return ft
}

func TestRefresh(t *testing.T) {
	s := New(seeded(), Options{})

	tr, err := s.Refresh(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tr.Tenant != "p1" || len(tr.Nodes) != 3 {
		t.Fatalf("tree = %+v", tr)
	}
	if s.FindByPath("a").State() != models.NotLoaded {
		t.Error("root folders should start unloaded")
	}
}

func TestExpand_MergesStructurally(t *testing.T) {
	s := New(seeded(), Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	after, err := s.Expand(ctx, "a")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	a := s.FindByPath("a")
	if a.State() != models.LoadedNonEmpty || len(a.Children) != 2 {
		t.Fatalf("a = %+v", a)
	}
	if s.FindByPath("a/y.txt") == nil {
		t.Error("merged child not found")
	}

	// Siblings are shared, the old snapshot is untouched.
	if after.Nodes[1] != before.Nodes[1] || after.Nodes[2] != before.Nodes[2] {
		t.Error("unrelated subtrees should be shared with the previous snapshot")
	}
	if before.Nodes[0].Loaded || len(before.Nodes[0].Children) != 0 {
		t.Error("previous snapshot was modified")
	}
}

func TestExpand_NestedFolder(t *testing.T) {
	ft := seeded()
	ft.set("p1", "a/x", file("a/x/deep.txt", "deep.txt"))
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")
	s.Expand(ctx, "a")
	s.Expand(ctx, "a/x")

	if s.FindByPath("a/x/deep.txt") == nil {
		t.Error("nested child not merged")
	}
}

func TestExpand_LoadedIsNoop(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	first, _ := s.Expand(ctx, "a")
	second, _ := s.Expand(ctx, "a")

	if ft.callCount("p1", "a") != 1 {
		t.Errorf("fetches = %d, want 1", ft.callCount("p1", "a"))
	}
	if first != second {
		t.Error("no-op expand should return the same snapshot")
	}
}

func TestExpand_EmptyFolderStaysLoaded(t *testing.T) {
	ft := seeded()
	ft.set("p1", "b")
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	s.Expand(ctx, "b")
	if got := s.FindByPath("b").State(); got != models.LoadedEmpty {
		t.Errorf("state = %v, want LoadedEmpty", got)
	}
	s.Expand(ctx, "b")
	if ft.callCount("p1", "b") != 1 {
		t.Error("an empty loaded folder should not be fetched again")
	}
}

func TestExpand_AbsentPathIsNoop(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	for _, p := range []string{"nope", "c.txt"} {
		after, err := s.Expand(ctx, p)
		if err != nil {
			t.Errorf("Expand(%q): %v", p, err)
		}
		if after != before {
			t.Errorf("Expand(%q) changed the tree", p)
		}
		if ft.callCount("p1", p) != 0 {
			t.Errorf("Expand(%q) should not fetch", p)
		}
	}
}

func TestExpand_FailureLeavesTreeUnchanged(t *testing.T) {
	ft := seeded()
	ft.fail("p1", "a", errors.New("backend down"))
	s := New(ft, Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	after, err := s.Expand(ctx, "a")
	if err != nil {
		t.Fatalf("expand failures should not surface, got %v", err)
	}
	if after != before {
		t.Error("tree changed after failed expand")
	}
	if s.FindByPath("a").Loaded {
		t.Error("failed folder should stay unloaded")
	}

	// A later attempt can still succeed.
	ft.set("p1", "a", file("a/y.txt", "y.txt"))
	s.Expand(ctx, "a")
	if s.FindByPath("a/y.txt") == nil {
		t.Error("retry after failure did not merge")
	}
}

func TestNotConfigured(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()

	if _, err := s.Expand(ctx, "a"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expand err = %v", err)
	}
	if _, err := s.Refresh(ctx, ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Refresh err = %v", err)
	}
	if _, err := s.ReadFile(ctx, "c.txt"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ReadFile err = %v", err)
	}
	if err := s.WriteFile(ctx, "c.txt", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("WriteFile err = %v", err)
	}
	if n := ft.callCount("", RootPath); n != 0 {
		t.Errorf("unexpected transport calls: %d", n)
	}
}

func TestTenantSwitch_NeverResurrectsOldTree(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")
	s.Expand(ctx, "a")

	s.SetTenant("p2")
	if tr := s.Tree(); tr.Tenant != "p2" || len(tr.Nodes) != 0 {
		t.Fatalf("tree after switch = %+v", tr)
	}

	ft.fail("p2", RootPath, errors.New("backend down"))
	tr, err := s.Refresh(ctx, "p2")
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if tr.Tenant != "p2" || len(tr.Nodes) != 0 {
		t.Errorf("failed refresh for a new tenant should leave an empty tree, got %+v", tr)
	}
	if s.FindByPath("a") != nil {
		t.Error("p1 nodes visible under p2")
	}
}

func TestRefresh_FailureKeepsSameTenantTree(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	ft.fail("p1", RootPath, errors.New("backend down"))
	after, err := s.Refresh(ctx, "p1")
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if after != before {
		t.Error("failed refresh should keep the previous tree")
	}
}

func TestRefresh_DirectlyToOtherTenantFailing(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	ft.fail("p2", RootPath, errors.New("backend down"))
	tr, err := s.Refresh(ctx, "p2")
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if tr.Tenant != "p2" || len(tr.Nodes) != 0 {
		t.Errorf("tree = %+v, want empty p2 tree", tr)
	}
}

func TestExpand_DifferentPathsConcurrently(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	var wg sync.WaitGroup
	for _, p := range []string{"a", "b"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			s.Expand(ctx, p)
		}(p)
	}
	wg.Wait()

	if !s.FindByPath("a").Loaded || !s.FindByPath("b").Loaded {
		t.Error("both expansions should be merged")
	}
	if s.FindByPath("a/x") == nil || s.FindByPath("b/z.txt") == nil {
		t.Error("children missing after concurrent expansion")
	}
}

// expandTwiceConcurrently starts two expansions of "a" and releases the
// listing only after both have reached the transport (or after a short
// grace period when they are coalesced).
func expandTwiceConcurrently(t *testing.T, coalesce bool) (*fakeTransport, *Synchronizer) {
	t.Helper()
	ft := seeded()
	s := New(ft, Options{Coalesce: coalesce})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	ft.mu.Lock()
	ft.gate = make(chan struct{})
	ft.gated["p1:a"] = true
	ft.started = make(chan string, 2)
	ft.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Expand(ctx, "a")
		}()
	}

	<-ft.started
	if !coalesce {
		<-ft.started
	} else {
		time.Sleep(20 * time.Millisecond)
	}
	close(ft.gate)
	wg.Wait()
	return ft, s
}

func TestExpand_SamePathWithoutCoalescing(t *testing.T) {
	ft, s := expandTwiceConcurrently(t, false)

	if n := ft.callCount("p1", "a"); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
	a := s.FindByPath("a")
	if !a.Loaded || len(a.Children) != 2 || a.Children[0].Path != "a/x" {
		t.Errorf("a = %+v", a)
	}
}

func TestExpand_SamePathCoalesced(t *testing.T) {
	ft, s := expandTwiceConcurrently(t, true)

	if n := ft.callCount("p1", "a"); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if !s.FindByPath("a").Loaded {
		t.Error("folder not loaded")
	}
}

func TestExpand_LateMergeDropped(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	ft.mu.Lock()
	ft.gate = make(chan struct{})
	ft.gated["p1:a"] = true
	ft.started = make(chan string, 1)
	ft.mu.Unlock()

	done := make(chan *models.Tree)
	go func() {
		tr, _ := s.Expand(ctx, "a")
		done <- tr
	}()
	<-ft.started

	// The tree is replaced while the listing is in flight.
	s.SetTenant("p2")
	close(ft.gate)
	tr := <-done

	if tr.Tenant != "p2" {
		t.Errorf("tenant = %q, want p2", tr.Tenant)
	}
	if s.FindByPath("a/x") != nil {
		t.Error("stale listing was merged into the new tenant's tree")
	}
}

func TestExpand_DuplicateMergeKeepsLoadedSubtree(t *testing.T) {
	ft := seeded()
	ft.set("p1", "a/x", file("a/x/deep.txt", "deep.txt"))
	s := New(ft, Options{})
	ctx := context.Background()
	s.Refresh(ctx, "p1")

	ft.mu.Lock()
	ft.gate = make(chan struct{})
	ft.gated["p1:a"] = true
	ft.started = make(chan string, 2)
	ft.mu.Unlock()

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s.Expand(ctx, "a")
			done <- struct{}{}
		}()
	}
	<-ft.started
	<-ft.started

	// Release one listing, then load a subfolder before the other lands.
	ft.gate <- struct{}{}
	<-done
	if _, err := s.Expand(ctx, "a/x"); err != nil {
		t.Fatal(err)
	}
	if x := s.FindByPath("a/x"); !x.Loaded || len(x.Children) != 1 {
		t.Fatalf("a/x before second merge = %+v", x)
	}

	ft.gate <- struct{}{}
	<-done

	x := s.FindByPath("a/x")
	if !x.Loaded || len(x.Children) != 1 || x.Children[0].Path != "a/x/deep.txt" {
		t.Errorf("a/x after second merge = %+v", x)
	}
}

func TestExpand_SurvivesFailedRefreshOfSameTenant(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	ft.mu.Lock()
	ft.gate = make(chan struct{})
	ft.gated["p1:a"] = true
	ft.started = make(chan string, 1)
	ft.mu.Unlock()

	done := make(chan *models.Tree)
	go func() {
		tr, _ := s.Expand(ctx, "a")
		done <- tr
	}()
	<-ft.started

	ft.fail("p1", RootPath, errors.New("backend down"))
	kept, err := s.Refresh(ctx, "p1")
	if err == nil {
		t.Fatal("expected refresh error")
	}
	if kept.Generation != before.Generation {
		t.Errorf("generation = %d, want %d", kept.Generation, before.Generation)
	}

	close(ft.gate)
	tr := <-done
	if a := tree.FindByPath(tr.Nodes, "a"); a == nil || !a.Loaded {
		t.Errorf("expansion was dropped: %+v", a)
	}
}

func TestRefresh_AdvancesGeneration(t *testing.T) {
	s := New(seeded(), Options{})
	ctx := context.Background()

	first, _ := s.Refresh(ctx, "p1")
	expanded, _ := s.Expand(ctx, "a")
	second, _ := s.Refresh(ctx, "p1")

	if expanded.Generation != first.Generation {
		t.Errorf("expand changed generation: %d -> %d", first.Generation, expanded.Generation)
	}
	if second.Generation <= first.Generation {
		t.Errorf("refresh generation %d not after %d", second.Generation, first.Generation)
	}
}

func TestUnsortedListingIsSorted(t *testing.T) {
	ft := newFakeTransport()
	ft.set("p1", RootPath, file("z.txt", "z.txt"), folder("b", "b"), file("a.txt", "a.txt"), folder("a", "a"))
	ft.set("p1", "a", file("a/y.txt", "y.txt"), folder("a/x", "x"))
	s := New(ft, Options{})
	ctx := context.Background()

	tr, err := s.Refresh(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !tree.IsSorted(tr.Nodes) || tr.Nodes[0].Path != "a" || tr.Nodes[3].Path != "z.txt" {
		t.Errorf("root = %+v", tr.Nodes)
	}

	s.Expand(ctx, "a")
	if a := s.FindByPath("a"); !tree.IsSorted(a.Children) || a.Children[0].Path != "a/x" {
		t.Errorf("a = %+v", a.Children)
	}
}

func TestReadWrite_PassThrough(t *testing.T) {
	ft := seeded()
	s := New(ft, Options{})
	ctx := context.Background()
	before, _ := s.Refresh(ctx, "p1")

	if err := s.WriteFile(ctx, "c.txt", "hello"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile(ctx, "c.txt")
	if err != nil || got != "hello" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
	if s.Tree() != before {
		t.Error("writes should not change the tree")
	}
}
