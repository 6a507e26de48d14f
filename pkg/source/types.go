package source

import (
	"sync"

	git "github.com/go-git/go-git/v5"
	"github.com/hashicorp/go-hclog"
)

// DefaultBranch is used when a remote does not name one and the
// checkout has no branch of its own yet.
const DefaultBranch = "master"

// A RepoMngr manages the git side of a git repository.
type RepoMngr struct {
	l      hclog.Logger
	Path   string
	Url    string
	Branch string
	Mu     *sync.Mutex
	repo   *git.Repository
}

// Git keeps recipe directories in sync with their remotes.  It
// satisfies the refresher interfaces of the detector and the
// builders.
type Git struct {
	l hclog.Logger

	// seed is a directory whose per base subdirectories are copied
	// into a fresh target before it is refreshed.
	seed string
}

// GitOption configures a Git refresher.
type GitOption func(*Git)

// Recipes reads package descriptions out of recipe directories.
type Recipes struct {
	l hclog.Logger

	git     *Git
	arch    string
	makepkg string
	cache   string
}

// RecipeOption configures Recipes.
type RecipeOption func(*Recipes)
