package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/user"
)

var (
	sampleMajors = []string{"Mathematics", "Physics", "Programming", "Chemistry", "Biology", "History", "Economics"}
	sampleWords  = []string{"algebra", "vectors", "kinetics", "entropy", "recursion", "syntax", "genome", "isotope", "tariff", "treaty"}
	sampleCities = []string{"Dar es Salaam", "Dodoma", "Arusha", "Mwanza", "Zanzibar City"}
)

// generateSampleData fills the database with users, groups, memberships,
// sessions, materials and comments for local development. Re-runs add more
// records on top of existing ones.
func (cli *commandLine) generateSampleData(nUsers, nGroups int) error {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	subjects, err := cli.grpRepo.QuerySubjects(ctx)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subjects found; run `admin migrate up` first")
	}

	users, err := cli.createSampleUsers(ctx, rnd, nUsers)
	if err != nil {
		return err
	}
	if _, err = cli.createSampleGroups(ctx, rnd, nGroups, subjects, users); err != nil {
		return err
	}
	// re-runs spread new records over pre-existing groups too
	groups, err := cli.grpRepo.FilterGroups(ctx, nil, nil)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}
	if err = cli.addSampleMemberships(ctx, rnd, nUsers*2, users, groups); err != nil {
		return err
	}
	if err = cli.createSampleSessions(ctx, rnd, nGroups*8, groups); err != nil {
		return err
	}
	if err = cli.createSampleMaterials(ctx, rnd, nGroups*3, groups, users); err != nil {
		return err
	}
	if err = cli.createSampleComments(ctx, rnd, nGroups*5, groups, users); err != nil {
		return err
	}

	fmt.Printf("sample data: %d users, %d groups\n", len(users), len(groups))
	return nil
}

func (cli *commandLine) createSampleUsers(ctx context.Context, rnd *rand.Rand, n int) ([]user.User, error) {
	users := make([]user.User, 0, n)
	for i := 0; i < n; i++ {
		uname := fmt.Sprintf("user%03d", i+1)

		if usr, err := cli.usrRepo.GetUserByUsername(ctx, uname); err == nil {
			users = append(users, usr)
			continue
		}

		// join dates spread over the trailing 6 months feed the member chart
		joined := time.Now().UTC().AddDate(0, 0, -rnd.Intn(180))
		isActive := true
		usr := user.User{
			Name:      fmt.Sprintf("Sample User %03d", i+1),
			Username:  uname,
			Email:     uname + "@example.com",
			Major:     sampleMajors[rnd.Intn(len(sampleMajors))],
			Bio:       fmt.Sprintf("Studying %s, into %s.", sampleWords[rnd.Intn(len(sampleWords))], sampleWords[rnd.Intn(len(sampleWords))]),
			Interests: sampleWords[rnd.Intn(len(sampleWords))],
			Roles:     []string{user.RoleStudent},
			IsActive:  &isActive,
			CreatedAt: joined,
			UpdatedAt: joined,
		}
		if err := usr.SetPassword("password"); err != nil {
			return nil, err
		}
		usr, err := cli.usrRepo.CreateUser(ctx, usr)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (cli *commandLine) createSampleGroups(
	ctx context.Context,
	rnd *rand.Rand,
	n int,
	subjects []group.Subject,
	users []user.User,
) ([]group.Group, error) {
	groups := make([]group.Group, 0, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		creator := users[rnd.Intn(len(users))]
		grp, err := cli.grpRepo.CreateGroup(ctx, group.Group{
			Name:        fmt.Sprintf("%s Study Group %d", sampleWords[rnd.Intn(len(sampleWords))], i+1),
			Description: fmt.Sprintf("A group working through %s together.", sampleWords[rnd.Intn(len(sampleWords))]),
			SubjectID:   subjects[rnd.Intn(len(subjects))].ID,
			CreatedBy:   creator.ID,
			MaxMembers:  5 + rnd.Intn(21),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return nil, err
		}
		if _, err = cli.grpRepo.CreateMembership(ctx, group.Membership{
			UserID:   creator.ID,
			GroupID:  grp.ID,
			Role:     group.RoleAdmin,
			JoinedAt: now,
		}); err != nil {
			return nil, err
		}
		groups = append(groups, grp)
	}
	return groups, nil
}

func (cli *commandLine) addSampleMemberships(
	ctx context.Context,
	rnd *rand.Rand,
	target int,
	users []user.User,
	groups []group.Group,
) error {
	roles := []string{group.RoleMember, group.RoleMember, group.RoleModerator}
	created := 0
	for attempts := 0; created < target && attempts < target*10; attempts++ {
		usr := users[rnd.Intn(len(users))]
		grp := groups[rnd.Intn(len(groups))]

		if _, err := cli.grpRepo.GetMembership(ctx, usr.ID, grp.ID); err == nil {
			continue
		}
		count, err := cli.grpRepo.CountMemberships(ctx, grp.ID)
		if err != nil {
			return err
		}
		if count >= grp.MaxMembers {
			continue
		}
		if _, err = cli.grpRepo.CreateMembership(ctx, group.Membership{
			UserID:   usr.ID,
			GroupID:  grp.ID,
			Role:     roles[rnd.Intn(len(roles))],
			JoinedAt: time.Now().UTC().AddDate(0, 0, -rnd.Intn(180)),
		}); err != nil {
			return err
		}
		created++
	}
	return nil
}

func (cli *commandLine) createSampleSessions(ctx context.Context, rnd *rand.Rand, n int, groups []group.Group) error {
	durations := []float64{1, 1.5, 2, 2.5, 3}
	minutes := []int{0, 15, 30, 45}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i := 0; i < n; i++ {
		grp := groups[rnd.Intn(len(groups))]

		// dates between 60 days ago and 30 days ahead
		date := today.AddDate(0, 0, rnd.Intn(91)-60)
		startH := 8 + rnd.Intn(13)
		start := time.Date(0, time.January, 1, startH, minutes[rnd.Intn(len(minutes))], 0, 0, time.UTC)
		end := start.Add(time.Duration(durations[rnd.Intn(len(durations))] * float64(time.Hour)))

		status := session.StatusCompleted
		if !date.Before(today) {
			status = session.StatusScheduled
		}
		isOnline := rnd.Intn(3) == 0
		location := sampleCities[rnd.Intn(len(sampleCities))]
		var meetingLink null.String
		if isOnline {
			location = "Online"
			meetingLink = null.StringFrom(fmt.Sprintf("https://meet.example.com/%s", uuid.New()))
		}

		now := time.Now().UTC()
		if _, err := cli.sessRepo.CreateSession(ctx, session.Session{
			GroupID:     grp.ID,
			Title:       fmt.Sprintf("%s session %d", sampleWords[rnd.Intn(len(sampleWords))], i+1),
			Description: fmt.Sprintf("Working session on %s.", sampleWords[rnd.Intn(len(sampleWords))]),
			Date:        date,
			StartTime:   null.TimeFrom(start),
			EndTime:     null.TimeFrom(end),
			Location:    location,
			IsOnline:    isOnline,
			MeetingLink: meetingLink,
			Status:      status,
			CreatedBy:   grp.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (cli *commandLine) createSampleMaterials(
	ctx context.Context,
	rnd *rand.Rand,
	n int,
	groups []group.Group,
	users []user.User,
) error {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		mat := group.Material{
			GroupID:     groups[rnd.Intn(len(groups))].ID,
			Title:       fmt.Sprintf("Notes on %s", sampleWords[rnd.Intn(len(sampleWords))]),
			Description: fmt.Sprintf("Shared notes covering %s.", sampleWords[rnd.Intn(len(sampleWords))]),
			UploadedBy:  users[rnd.Intn(len(users))].ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if rnd.Float64() < 0.7 {
			mat.Link = null.StringFrom(fmt.Sprintf("https://materials.example.com/%s", uuid.New()))
		} else {
			mat.FilePath = null.StringFrom(fmt.Sprintf("materials/%s.pdf", uuid.New()))
		}
		if _, err := cli.grpRepo.CreateMaterial(ctx, mat); err != nil {
			return err
		}
	}
	return nil
}

func (cli *commandLine) createSampleComments(
	ctx context.Context,
	rnd *rand.Rand,
	n int,
	groups []group.Group,
	users []user.User,
) error {
	now := time.Now().UTC()
	var comments []group.Comment
	for i := 0; i < n; i++ {
		cmt := group.Comment{
			GroupID:   groups[rnd.Intn(len(groups))].ID,
			AuthorID:  users[rnd.Intn(len(users))].ID,
			Content:   fmt.Sprintf("Anyone up for another round of %s this week?", sampleWords[rnd.Intn(len(sampleWords))]),
			CreatedAt: now,
			UpdatedAt: now,
		}
		// a fifth of the comments reply to an earlier one in the same group
		if len(comments) > 0 && rnd.Float64() < 0.2 {
			parent := comments[rnd.Intn(len(comments))]
			cmt.GroupID = parent.GroupID
			cmt.ParentID = null.IntFrom(parent.ID)
		}
		cmt, err := cli.grpRepo.CreateComment(ctx, cmt)
		if err != nil {
			return err
		}
		comments = append(comments, cmt)
	}
	return nil
}
