package repo

import "fmt"

// ChangePassword rotates the password protecting the repository's master
// key (spec.md §4.14): a fresh salt is generated and the unchanged master
// key is re-sealed under a key derived from newPassword. No data block is
// touched, and the change is purely in-memory until the caller commits.
func (r *ObjectRepo) ChangePassword(newPassword string) error {
	updated, err := r.state.metadata.ChangePassword(newPassword, r.state.masterKey, metadataSeal)
	if err != nil {
		return fmt.Errorf("repo: change password: %w", err)
	}
	r.state.metadata = updated
	return nil
}
