package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
	"github.com/vivekyadav247/billmngapp-backend/internal/xid"
)

const employeeIDAttempts = 8

// SignInOwner finds or creates the owner account for a verified Google
// identity. Employee accounts cannot sign in this way.
func (s *Service) SignInOwner(ctx context.Context, identity domain.GoogleIdentity) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" || strings.TrimSpace(identity.Subject) == "" {
		return domain.User{}, store.Invalid("google account details are incomplete")
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}
	if existing != nil {
		if existing.Role != domain.RoleOwner {
			return domain.User{}, fmt.Errorf("%w: this account is registered as employee, please use employee login", ErrForbidden)
		}
		if !existing.IsActive {
			return domain.User{}, ErrUnauthenticated
		}
		existing.Name = name
		existing.GoogleSubject = identity.Subject
		saved, err := s.repo.UpdateUser(ctx, *existing)
		if err != nil {
			return domain.User{}, err
		}
		return *saved, nil
	}

	now := s.now().UTC()
	created, err := s.repo.CreateUser(ctx, domain.User{
		ID:            xid.New(),
		Role:          domain.RoleOwner,
		Name:          name,
		Email:         email,
		GoogleSubject: identity.Subject,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("owner account created", zap.String("user_id", created.ID))
	return *created, nil
}

// AuthenticateEmployee checks shop code, employee id and password. Every
// failure reports the same error so callers cannot tell which part was wrong.
func (s *Service) AuthenticateEmployee(ctx context.Context, shopCode string, employeeID string, password string) (domain.User, error) {
	shopCode = strings.ToUpper(strings.TrimSpace(shopCode))
	employeeID = strings.ToUpper(strings.TrimSpace(employeeID))
	if shopCode == "" || employeeID == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	shop, err := s.repo.GetShopByCode(ctx, shopCode)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	employee, err := s.repo.GetEmployeeByCode(ctx, shop.ID, employeeID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !employee.IsActive || !verifyPassword(employee.PasswordHash, password) {
		return domain.User{}, ErrInvalidCredentials
	}
	return *employee, nil
}

func (s *Service) GetMe(ctx context.Context) (domain.Profile, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.Profile{}, err
	}

	profile := domain.Profile{User: *user}
	if user.ShopID != "" {
		shop, err := s.repo.GetShop(ctx, user.ShopID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.Profile{}, err
		}
		profile.Shop = shop
	}
	return profile, nil
}

func (s *Service) UpdateMe(ctx context.Context, req domain.ProfileUpdateRequest) (domain.Profile, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if req.Name == nil && req.PhoneNumber == nil {
		return domain.Profile{}, store.Invalid("no profile fields provided for update")
	}

	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.Profile{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Profile{}, store.Invalid("name cannot be empty")
		}
		user.Name = name
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = ""
		if strings.TrimSpace(*req.PhoneNumber) != "" {
			user.PhoneNumber, err = s.normalizePhone(*req.PhoneNumber)
			if err != nil {
				return domain.Profile{}, err
			}
		}
	}

	if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
		return domain.Profile{}, err
	}
	return s.GetMe(ctx)
}

func (s *Service) ListEmployees(ctx context.Context) (domain.EmployeeListResponse, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.EmployeeListResponse{}, err
	}
	employees, err := s.repo.ListEmployees(ctx, actor.ShopID)
	if err != nil {
		return domain.EmployeeListResponse{}, err
	}
	return domain.EmployeeListResponse{Employees: employees}, nil
}

// UpsertEmployee creates an employee, or updates the one already holding
// the given email, and returns the shop code it logs in with.
func (s *Service) UpsertEmployee(ctx context.Context, req domain.EmployeeUpsertRequest) (domain.EmployeeUpsertResponse, error) {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return domain.EmployeeUpsertResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
			return domain.EmployeeUpsertResponse{}, store.Invalid("employee email format is invalid")
		}
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return domain.EmployeeUpsertResponse{}, store.Invalid("employee phone number is required")
	}
	mobile, err := s.normalizePhone(req.PhoneNumber)
	if err != nil {
		return domain.EmployeeUpsertResponse{}, err
	}
	if len(req.Password) < minPasswordLength {
		return domain.EmployeeUpsertResponse{}, store.Invalid("employee password must be at least %d characters", minPasswordLength)
	}

	shop, err := s.repo.GetShop(ctx, actor.ShopID)
	if err != nil {
		return domain.EmployeeUpsertResponse{}, err
	}
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.EmployeeUpsertResponse{}, fmt.Errorf("hash employee password: %w", err)
	}
	name := strings.TrimSpace(req.Name)

	var existing *domain.User
	if email != "" {
		existing, err = s.repo.GetUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.EmployeeUpsertResponse{}, err
		}
	}

	var employee *domain.User
	if existing != nil {
		if existing.Role == domain.RoleOwner {
			return domain.EmployeeUpsertResponse{}, store.Invalid("this email already belongs to a shop owner account")
		}
		if existing.ShopID != "" && existing.ShopID != actor.ShopID {
			return domain.EmployeeUpsertResponse{}, store.Conflict("employee already belongs to another shop")
		}
		if name != "" {
			existing.Name = name
		}
		existing.PhoneNumber = mobile
		existing.PasswordHash = passwordHash
		existing.ShopID = actor.ShopID
		existing.IsActive = true
		employee, err = s.saveEmployee(ctx, *existing, false)
	} else {
		now := s.now().UTC()
		employee, err = s.saveEmployee(ctx, domain.User{
			ID:           xid.New(),
			Role:         domain.RoleEmployee,
			Name:         name,
			Email:        email,
			PhoneNumber:  mobile,
			ShopID:       actor.ShopID,
			PasswordHash: passwordHash,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}, true)
	}
	if err != nil {
		return domain.EmployeeUpsertResponse{}, err
	}

	s.logger.Info("employee saved",
		zap.String("shop_id", actor.ShopID),
		zap.String("user_id", employee.ID),
		zap.String("employee_id", employee.EmployeeID),
		zap.Bool("created", existing == nil),
	)
	return domain.EmployeeUpsertResponse{Employee: *employee, ShopCode: shop.Code}, nil
}

// saveEmployee assigns an employee id when the user has none yet, retrying
// on collisions.
func (s *Service) saveEmployee(ctx context.Context, user domain.User, create bool) (*domain.User, error) {
	if !create && user.EmployeeID != "" {
		return s.repo.UpdateUser(ctx, user)
	}

	for attempt := 0; attempt < employeeIDAttempts; attempt++ {
		user.EmployeeID = xid.EmployeeID()
		if strings.TrimSpace(user.Name) == "" {
			user.Name = defaultEmployeeName(user)
		}

		var saved *domain.User
		var err error
		if create {
			saved, err = s.repo.CreateUser(ctx, user)
		} else {
			saved, err = s.repo.UpdateUser(ctx, user)
		}
		if errors.Is(err, store.ErrDuplicateCode) {
			continue
		}
		return saved, err
	}
	return nil, fmt.Errorf("unable to generate unique employee id: %w", store.ErrExhausted)
}

func defaultEmployeeName(user domain.User) string {
	if user.Email != "" {
		return strings.Split(user.Email, "@")[0]
	}
	return "Employee " + user.EmployeeID
}

// DeactivateEmployee revokes an employee's access. Their history and
// salary_due stay in place.
func (s *Service) DeactivateEmployee(ctx context.Context, employeeUserID string) error {
	actor, err := s.shopActor(ctx, domain.RoleOwner)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUser(ctx, strings.TrimSpace(employeeUserID))
	if errors.Is(err, store.ErrNotFound) || (err == nil && (user.ShopID != actor.ShopID || user.Role != domain.RoleEmployee)) {
		return store.NotFound("employee")
	}
	if err != nil {
		return err
	}

	user.IsActive = false
	if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
		return err
	}
	s.logger.Info("employee deactivated", zap.String("shop_id", actor.ShopID), zap.String("user_id", user.ID))
	return nil
}
