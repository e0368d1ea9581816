package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/sakif/yatube/internal/apperror"
	"github.com/sakif/yatube/internal/model"
	"github.com/sakif/yatube/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface over plain maps, the way
// *sqlite.DB does over tables. It copies values in and out so a test cannot
// mutate stored state through a returned pointer. Set failWith to make
// every call fail, simulating a broken database.

type fakeStore struct {
	users    map[int64]*model.User
	groups   map[int64]*model.Group
	posts    map[int64]*model.Post
	comments map[int64]*model.Comment
	follows  map[[2]int64]bool

	nextID int64
	clock  time.Time

	failWith error
}

var (
	_ repository.UserRepository    = (*fakeStore)(nil)
	_ repository.GroupRepository   = (*fakeStore)(nil)
	_ repository.PostRepository    = (*fakeStore)(nil)
	_ repository.CommentRepository = (*fakeStore)(nil)
	_ repository.FollowRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*model.User),
		groups:   make(map[int64]*model.Group),
		posts:    make(map[int64]*model.Post),
		comments: make(map[int64]*model.Comment),
		follows:  make(map[[2]int64]bool),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// --- users ---

func (f *fakeStore) Create(_ context.Context, user *model.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	user.ID = f.id()
	user.CreatedAt = f.tick()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) UpsertGitHub(ctx context.Context, user *model.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			u.Email = user.Email
			*user = *u
			return nil
		}
	}
	return f.Create(ctx, user)
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	delete(f.users, id)
	for pid, p := range f.posts {
		if p.AuthorID == id {
			delete(f.posts, pid)
		}
	}
	for edge := range f.follows {
		if edge[0] == id || edge[1] == id {
			delete(f.follows, edge)
		}
	}
	return nil
}

// --- groups ---

func (f *fakeStore) CreateGroup(_ context.Context, group *model.Group) error {
	for _, g := range f.groups {
		if g.Slug == group.Slug {
			return apperror.Conflict("group", group.Slug)
		}
	}
	group.ID = f.id()
	stored := *group
	f.groups[group.ID] = &stored
	return nil
}

func (f *fakeStore) GetGroupByID(_ context.Context, id int64) (*model.Group, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	g, ok := f.groups[id]
	if !ok {
		return nil, apperror.NotFound("group", strconv.FormatInt(id, 10))
	}
	out := *g
	return &out, nil
}

func (f *fakeStore) GetGroupBySlug(_ context.Context, slug string) (*model.Group, error) {
	for _, g := range f.groups {
		if g.Slug == slug {
			out := *g
			return &out, nil
		}
	}
	return nil, apperror.NotFound("group", slug)
}

func (f *fakeStore) ListGroups(_ context.Context) ([]model.Group, error) {
	out := make([]model.Group, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteGroup(_ context.Context, id int64) error {
	if _, ok := f.groups[id]; !ok {
		return apperror.NotFound("group", strconv.FormatInt(id, 10))
	}
	delete(f.groups, id)
	for _, p := range f.posts {
		if p.GroupID != nil && *p.GroupID == id {
			p.GroupID = nil
		}
	}
	return nil
}

// --- posts ---

// decorate fills the denormalised display fields the SQL JOINs provide.
func (f *fakeStore) decorate(p model.Post) model.Post {
	if u, ok := f.users[p.AuthorID]; ok {
		p.AuthorUsername = u.Username
	}
	p.GroupTitle, p.GroupSlug = "", ""
	if p.GroupID != nil {
		if g, ok := f.groups[*p.GroupID]; ok {
			p.GroupTitle, p.GroupSlug = g.Title, g.Slug
		}
	}
	return p
}

func (f *fakeStore) CreatePost(_ context.Context, post *model.Post) error {
	if f.failWith != nil {
		return f.failWith
	}
	post.ID = f.id()
	post.CreatedAt = f.tick()
	stored := *post
	f.posts[post.ID] = &stored
	return nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id int64) (*model.Post, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	out := f.decorate(*p)
	return &out, nil
}

func (f *fakeStore) UpdatePost(_ context.Context, post *model.Post) error {
	if f.failWith != nil {
		return f.failWith
	}
	p, ok := f.posts[post.ID]
	if !ok {
		return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
	}
	p.Text, p.GroupID, p.Image = post.Text, post.GroupID, post.Image
	return nil
}

func (f *fakeStore) DeletePost(_ context.Context, id int64) error {
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", strconv.FormatInt(id, 10))
	}
	delete(f.posts, id)
	for cid, c := range f.comments {
		if c.PostID == id {
			delete(f.comments, cid)
		}
	}
	return nil
}

// selectPosts filters, orders newest first and applies the window.
func (f *fakeStore) selectPosts(keep func(*model.Post) bool, opts repository.ListOptions) ([]model.Post, int, error) {
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	var out []model.Post
	for _, p := range f.posts {
		if keep(p) {
			out = append(out, f.decorate(*p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := len(out)
	if opts.Offset > len(out) {
		return nil, total, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, total, nil
}

func all(*model.Post) bool { return true }

func byGroup(id int64) func(*model.Post) bool {
	return func(p *model.Post) bool { return p.GroupID != nil && *p.GroupID == id }
}

func byAuthor(id int64) func(*model.Post) bool {
	return func(p *model.Post) bool { return p.AuthorID == id }
}

func (f *fakeStore) inFeed(userID int64) func(*model.Post) bool {
	return func(p *model.Post) bool { return f.follows[[2]int64{userID, p.AuthorID}] }
}

func (f *fakeStore) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	out, _, err := f.selectPosts(all, opts)
	return out, err
}

func (f *fakeStore) CountPosts(_ context.Context) (int, error) {
	_, n, err := f.selectPosts(all, repository.ListOptions{})
	return n, err
}

func (f *fakeStore) ListPostsByGroup(_ context.Context, groupID int64, opts repository.ListOptions) ([]model.Post, error) {
	out, _, err := f.selectPosts(byGroup(groupID), opts)
	return out, err
}

func (f *fakeStore) CountPostsByGroup(_ context.Context, groupID int64) (int, error) {
	_, n, err := f.selectPosts(byGroup(groupID), repository.ListOptions{})
	return n, err
}

func (f *fakeStore) ListPostsByAuthor(_ context.Context, authorID int64, opts repository.ListOptions) ([]model.Post, error) {
	out, _, err := f.selectPosts(byAuthor(authorID), opts)
	return out, err
}

func (f *fakeStore) CountPostsByAuthor(_ context.Context, authorID int64) (int, error) {
	_, n, err := f.selectPosts(byAuthor(authorID), repository.ListOptions{})
	return n, err
}

func (f *fakeStore) ListFeed(_ context.Context, userID int64, opts repository.ListOptions) ([]model.Post, error) {
	out, _, err := f.selectPosts(f.inFeed(userID), opts)
	return out, err
}

func (f *fakeStore) CountFeed(_ context.Context, userID int64) (int, error) {
	_, n, err := f.selectPosts(f.inFeed(userID), repository.ListOptions{})
	return n, err
}

// --- comments ---

func (f *fakeStore) CreateComment(_ context.Context, c *model.Comment) error {
	if _, ok := f.posts[c.PostID]; !ok {
		return apperror.NotFound("post", strconv.FormatInt(c.PostID, 10))
	}
	c.ID = f.id()
	c.CreatedAt = f.tick()
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeStore) ListCommentsByPost(_ context.Context, postID int64) ([]model.Comment, error) {
	var out []model.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			cp := *c
			if u, ok := f.users[c.AuthorID]; ok {
				cp.AuthorUsername = u.Username
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- follows ---

func (f *fakeStore) CreateFollow(_ context.Context, userID, authorID int64) (bool, error) {
	if userID == authorID {
		return false, errors.New("CHECK constraint failed: no_self_follow")
	}
	edge := [2]int64{userID, authorID}
	if f.follows[edge] {
		return false, nil
	}
	f.follows[edge] = true
	return true, nil
}

func (f *fakeStore) DeleteFollow(_ context.Context, userID, authorID int64) error {
	edge := [2]int64{userID, authorID}
	if !f.follows[edge] {
		return apperror.NotFound("follow", "edge")
	}
	delete(f.follows, edge)
	return nil
}

func (f *fakeStore) IsFollowing(_ context.Context, userID, authorID int64) (bool, error) {
	return f.follows[[2]int64{userID, authorID}], nil
}

func (f *fakeStore) CountFollowers(_ context.Context, authorID int64) (int, error) {
	n := 0
	for edge := range f.follows {
		if edge[1] == authorID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountFollowing(_ context.Context, userID int64) (int, error) {
	n := 0
	for edge := range f.follows {
		if edge[0] == userID {
			n++
		}
	}
	return n, nil
}

// --- fixtures ---

func (f *fakeStore) addUser(username string) *model.User {
	u := &model.User{Username: username}
	if err := f.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (f *fakeStore) addGroup(slug string) *model.Group {
	g := &model.Group{Title: "Group " + slug, Slug: slug}
	if err := f.CreateGroup(context.Background(), g); err != nil {
		panic(err)
	}
	return g
}

func (f *fakeStore) addPost(author *model.User, text string, group *model.Group) *model.Post {
	p := &model.Post{Text: text, AuthorID: author.ID}
	if group != nil {
		p.GroupID = &group.ID
	}
	if err := f.CreatePost(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}
