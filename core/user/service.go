package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core"
)

var (
	// errors
	ErrNotFound   = errors.New("user not found")
	ErrUserExists = errors.New("a user with this username or email already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		CountUsers(ctx context.Context) (int, error)
		UserJoinDates(ctx context.Context) ([]time.Time, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) error
	}

	ServiceInterface interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		Register(nu NewUser) (User, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(id int) (User, error)
		GetByUsername(uname string) (User, error)
		GetByEmail(email string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		Update(id int, uu UpdateUser) (User, error)
		SetLastLogin(usr User) (User, error)
		Delete(ids ...int) error
		RequestPasswordReset(email string) error
		ResetPassword(rp ResetUserPassword) error
	}

	Service struct {
		ctx     context.Context
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		ctx:     context.Background(),
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(svc.ctx, uname, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrUserExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	return nil
}

func (svc *Service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	isActive := true
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Bio:       nu.Bio,
		Major:     nu.Major,
		Interests: nu.Interests,
		IsActive:  &isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(svc.ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

// Register creates a self-registered User; roles are never taken from the request.
func (svc *Service) Register(nu NewUser) (User, error) {
	nu.Roles = []string{RoleStudent}
	return svc.Create(nu)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(svc.ctx, filter, ordering)
}

func (svc *Service) GetByID(id int) (User, error) {
	return svc.repo.GetUserByID(svc.ctx, id)
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(svc.ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(svc.ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(svc.ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Update(id int, uu UpdateUser) (User, error) {
	orig, err := svc.repo.GetUserByID(svc.ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}

	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Bio:       orig.Bio,
		Major:     orig.Major,
		Interests: orig.Interests,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Bio != nil {
		usr.Bio = *uu.Bio
	}
	if uu.Major != nil {
		usr.Major = *uu.Major
	}
	if uu.Interests != nil {
		usr.Interests = *uu.Interests
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err = svc.repo.UpdateUser(svc.ctx, usr, uu.IsActive)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(svc.ctx, usr, nil)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *Service) Delete(ids ...int) error {
	return errors.Wrap(svc.repo.DeleteUsersByID(svc.ctx, ids...), "deleting users")
}

func (svc *Service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}

	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", svc.conf.FrontendBaseURL, EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password Reset",
		TextContent: fmt.Sprintf(
			"Hi %s,\n\nYou requested a password reset on %s. Follow the link below to set a new password:\n\n%s\n\n"+
				"If you did not request this, you can safely ignore this email.", usr.Name, svc.conf.AppName, url),
	})
	return nil
}

func (svc *Service) ResetPassword(rp ResetUserPassword) error {
	usr, err := UserForToken(svc, rp.UID, rp.Token)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(svc.ctx, usr, nil); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}
