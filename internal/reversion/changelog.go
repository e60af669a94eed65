package reversion

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MinaProtocol/mina-release-toolkit/internal/utils"
)

const changelogAuthor = "Release Manager <release@minaprotocol.com>"

// changelogTime is the Debian changelog date layout
const changelogTime = "Mon, 02 Jan 2006 15:04:05 +0000"

// updateChangelog records the version transition in the package changelog.
// The compressed artifact is never patched in place: a fresh uncompressed
// entry is written and then compressed over it. Packages without a changelog
// are left alone.
func (r *Reversioner) updateChangelog(extractDir string) error {
	docDir := filepath.Join(extractDir, "usr", "share", "doc", r.config.PackageName)

	var compressedName string
	for _, name := range []string{"changelog.Debian.gz", "changelog.gz"} {
		if _, err := os.Stat(filepath.Join(docDir, name)); err == nil {
			compressedName = name
			break
		}
	}
	if compressedName == "" {
		return nil
	}

	logrus.Debugf("Updating changelog under %s", docDir)

	newDocDir := filepath.Join(extractDir, "usr", "share", "doc", r.finalName())
	if err := utils.EnsureDir(newDocDir); err != nil {
		return err
	}

	entry := fmt.Sprintf(
		"%s (%s) %s; urgency=medium\n\n  * Reversion from %s to %s\n  * Automated reversion by release toolkit\n\n -- %s  %s\n\n",
		r.finalName(),
		r.config.NewVersion,
		r.config.NewSuite,
		r.config.SourceVersion,
		r.config.NewVersion,
		changelogAuthor,
		time.Now().UTC().Format(changelogTime),
	)

	plainPath := filepath.Join(newDocDir, "changelog.Debian")
	if err := os.WriteFile(plainPath, []byte(entry), 0644); err != nil {
		return err
	}

	compressed, err := utils.GzipCompress([]byte(entry))
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(newDocDir, compressedName), compressed, 0644); err != nil {
		return err
	}

	// Mirror gzip's replace-the-input behavior
	return os.Remove(plainPath)
}
