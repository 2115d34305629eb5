// seed.go
//
// Case-management data service for investigative teams
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of casefile.
// casefile is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// casefile is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with casefile.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package seed loads users and case canvases from YAML into the database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/localnerve/casefile/data"
	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type File struct {
	Users []User `yaml:"users"`
	Cases []Case `yaml:"cases"`
}

type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Case is a seeded case. A fixed ID makes re-seeding skip the case instead of duplicating it.
type Case struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Status  string   `yaml:"status"`
	Lead    string   `yaml:"lead"`
	Summary string   `yaml:"summary"`
	Owner   string   `yaml:"owner"`
	Members []Member `yaml:"members"`
	Nodes   []Node   `yaml:"nodes"`
	Edges   []Edge   `yaml:"edges"`
}

type Member struct {
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

// Node is a canvas node; Key names it for the edges of the same case
type Node struct {
	Key    string  `yaml:"key"`
	Type   string  `yaml:"type"`
	Label  string  `yaml:"label"`
	Detail string  `yaml:"detail"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
}

type Edge struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Label  string `yaml:"label"`
}

// Result counts what Apply changed
type Result struct {
	UsersCreated int
	UsersExisted int
	CasesCreated int
	CasesSkipped int
}

// Load reads a seed file from path, or the embedded demo seed when path is empty
func Load(path string) (*File, error) {
	if path == "" {
		return Parse(data.DemoSeed)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading seed file: %w", err)
	}
	return Parse(contents)
}

// Parse decodes and validates a seed document
func Parse(contents []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(contents, &f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	if err := validate(&f); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return &f, nil
}

func validate(f *File) error {
	emails := make(map[string]struct{}, len(f.Users))
	for i, u := range f.Users {
		email := normalize(u.Email)
		if email == "" {
			return fmt.Errorf("user %d email is required", i)
		}
		if _, ok := emails[email]; ok {
			return fmt.Errorf("duplicate user email %s", email)
		}
		emails[email] = struct{}{}
	}

	for i, c := range f.Cases {
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("case %d title is required", i)
		}
		if c.Status != "" && !models.ValidCaseStatus(c.Status) {
			return fmt.Errorf("case %q has unknown status %q", c.Title, c.Status)
		}
		keys := make(map[string]struct{}, len(c.Nodes))
		for j, n := range c.Nodes {
			if n.Key == "" {
				return fmt.Errorf("case %q node %d key is required", c.Title, j)
			}
			if _, ok := keys[n.Key]; ok {
				return fmt.Errorf("case %q has duplicate node key %q", c.Title, n.Key)
			}
			if strings.TrimSpace(n.Type) == "" || strings.TrimSpace(n.Label) == "" {
				return fmt.Errorf("case %q node %q needs a type and label", c.Title, n.Key)
			}
			keys[n.Key] = struct{}{}
		}
		for j, e := range c.Edges {
			if _, ok := keys[e.Source]; !ok {
				return fmt.Errorf("case %q edge %d source %q is not a node key", c.Title, j, e.Source)
			}
			if _, ok := keys[e.Target]; !ok {
				return fmt.Errorf("case %q edge %d target %q is not a node key", c.Title, j, e.Target)
			}
		}
	}
	return nil
}

// Apply creates the users and cases of f that do not exist yet. Existing users are reused,
// cases whose ID already exists are skipped.
func Apply(ctx context.Context, db *gorm.DB, f *File) (*Result, error) {
	result := &Result{}
	users := make(map[string]*models.User)

	for _, u := range f.Users {
		user, created, err := ensureUser(ctx, db, u)
		if err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", u.Email, err)
		}
		if created {
			result.UsersCreated++
		} else {
			result.UsersExisted++
		}
		users[user.Email] = user
	}

	lookup := func(email string) (*models.User, error) {
		email = normalize(email)
		if user, ok := users[email]; ok {
			return user, nil
		}
		var user models.User
		if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("user %s is not seeded", email)
			}
			return nil, err
		}
		users[email] = &user
		return &user, nil
	}

	for _, c := range f.Cases {
		created, err := applyCase(ctx, db, c, lookup)
		if err != nil {
			return nil, fmt.Errorf("seeding case %s: %w", c.Title, err)
		}
		if created {
			result.CasesCreated++
		} else {
			result.CasesSkipped++
		}
	}

	return result, nil
}

func ensureUser(ctx context.Context, db *gorm.DB, u User) (*models.User, bool, error) {
	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", normalize(u.Email)).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user, err := services.CreateUser(ctx, db, services.NewUser{
		Name:     u.Name,
		Email:    u.Email,
		Password: u.Password,
		Role:     u.Role,
		Verified: true,
	}, nil)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func applyCase(ctx context.Context, db *gorm.DB, c Case, lookup func(string) (*models.User, error)) (bool, error) {
	if c.ID != "" {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", c.ID).Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			log.Printf("Case %s already exists, skipping", c.ID)
			return false, nil
		}
	}

	var owner *models.User
	if c.Owner != "" {
		var err error
		if owner, err = lookup(c.Owner); err != nil {
			return false, err
		}
	}

	record := models.Case{
		ID:      c.ID,
		Title:   strings.TrimSpace(c.Title),
		Status:  c.Status,
		Lead:    c.Lead,
		Summary: c.Summary,
	}
	if record.Status == "" {
		record.Status = models.CaseActive
	}
	if owner != nil {
		record.OwnerID = &owner.ID
	}

	members := make([]models.CaseMember, 0, len(c.Members)+1)
	enrolled := make(map[string]struct{})
	if owner != nil {
		members = append(members, models.CaseMember{UserID: owner.ID, Role: owner.Role})
		enrolled[owner.ID] = struct{}{}
	}
	for _, m := range c.Members {
		user, err := lookup(m.Email)
		if err != nil {
			return false, err
		}
		if _, ok := enrolled[user.ID]; ok {
			continue
		}
		role := m.Role
		if role == "" {
			role = user.Role
		}
		members = append(members, models.CaseMember{UserID: user.ID, Role: role})
		enrolled[user.ID] = struct{}{}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		for i := range members {
			members[i].CaseID = record.ID
			if err := tx.Create(&members[i]).Error; err != nil {
				return err
			}
		}

		nodeIDs := make(map[string]string, len(c.Nodes))
		for _, n := range c.Nodes {
			node := models.Node{
				CaseID: record.ID,
				Type:   n.Type,
				Label:  strings.TrimSpace(n.Label),
				Detail: n.Detail,
				X:      n.X,
				Y:      n.Y,
			}
			if err := tx.Create(&node).Error; err != nil {
				return err
			}
			nodeIDs[n.Key] = node.ID
		}
		for _, e := range c.Edges {
			edge := models.Edge{
				CaseID:   record.ID,
				SourceID: nodeIDs[e.Source],
				TargetID: nodeIDs[e.Target],
				Label:    e.Label,
			}
			if err := tx.Create(&edge).Error; err != nil {
				return err
			}
		}
		return services.RecordAudit(ctx, tx, &record.ID, services.ActionCreateCase, "Case created: "+record.Title, owner)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
