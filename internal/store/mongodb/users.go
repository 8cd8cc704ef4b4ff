package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/store"
)

func (s *Store) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		var owner domain.User
		if err := s.coll(usersCollection).FindOne(sc, bson.M{"_id": shop.OwnerID}).Decode(&owner); err != nil {
			return notFound(err, "owner")
		}
		if owner.ShopID != "" {
			return store.Conflict("owner already has a shop")
		}
		if _, err := s.coll(shopsCollection).InsertOne(sc, shop); err != nil {
			return mapDuplicateKey(err)
		}
		_, err := s.coll(usersCollection).UpdateOne(sc, bson.M{"_id": owner.ID}, bson.M{
			"$set": bson.M{"shop_id": shop.ID, "updated_at": shop.CreatedAt},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	created := shop
	return &created, nil
}

func (s *Store) findShop(ctx context.Context, filter bson.M) (*domain.Shop, error) {
	var shop domain.Shop
	if err := s.coll(shopsCollection).FindOne(ctx, filter).Decode(&shop); err != nil {
		return nil, notFound(err, "shop")
	}
	return &shop, nil
}

func (s *Store) GetShop(ctx context.Context, shopID string) (*domain.Shop, error) {
	return s.findShop(ctx, bson.M{"_id": shopID})
}

func (s *Store) GetShopByCode(ctx context.Context, code string) (*domain.Shop, error) {
	return s.findShop(ctx, bson.M{"code": code})
}

func (s *Store) UpdateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	var updated domain.Shop
	err := s.coll(shopsCollection).FindOneAndUpdate(ctx, bson.M{"_id": shop.ID}, bson.M{
		"$set": bson.M{
			"name":         shop.Name,
			"type":         shop.Type,
			"owner_mobile": shop.OwnerMobile,
			"updated_at":   time.Now().UTC(),
		},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		return nil, notFound(err, "shop")
	}
	return &updated, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if _, err := s.coll(usersCollection).InsertOne(ctx, user); err != nil {
		return nil, mapDuplicateKey(err)
	}
	created := user
	return &created, nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M, entity string) (*domain.User, error) {
	var user domain.User
	if err := s.coll(usersCollection).FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err, entity)
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID}, "user")
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, store.NotFound("user")
	}
	return s.findUser(ctx, bson.M{"email": email}, "user")
}

func (s *Store) GetEmployeeByCode(ctx context.Context, shopID string, employeeID string) (*domain.User, error) {
	return s.findUser(ctx, bson.M{"role": domain.RoleEmployee, "shop_id": shopID, "employee_id": employeeID}, "employee")
}

// UpdateUser rewrites the profile fields and drops optional ones that are
// now empty. salary_due is never touched here.
func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	set := bson.M{
		"name":       user.Name,
		"is_active":  user.IsActive,
		"updated_at": time.Now().UTC(),
	}
	unset := bson.M{}
	for field, value := range map[string]string{
		"email":          user.Email,
		"phone_number":   user.PhoneNumber,
		"shop_id":        user.ShopID,
		"employee_id":    user.EmployeeID,
		"password_hash":  user.PasswordHash,
		"google_subject": user.GoogleSubject,
	} {
		if value == "" {
			unset[field] = ""
		} else {
			set[field] = value
		}
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var updated domain.User
	err := s.coll(usersCollection).FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		return nil, mapDuplicateKey(notFound(err, "user"))
	}
	return &updated, nil
}

func (s *Store) ListEmployees(ctx context.Context, shopID string) ([]domain.User, error) {
	cursor, err := s.coll(usersCollection).Find(ctx,
		bson.M{"role": domain.RoleEmployee, "shop_id": shopID, "is_active": true},
		findOptions(bson.D{{Key: "created_at", Value: -1}, {Key: "name", Value: 1}}, 0))
	if err != nil {
		return nil, err
	}
	employees := make([]domain.User, 0, 8)
	if err := cursor.All(ctx, &employees); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *Store) AdjustSalaryDue(ctx context.Context, shopID string, userID string, delta float64, entry *domain.SalaryEntry) (*domain.User, error) {
	var updated domain.User
	err := s.inTransaction(ctx, func(sc mongo.SessionContext) error {
		err := s.coll(usersCollection).FindOneAndUpdate(sc,
			bson.M{"_id": userID, "shop_id": shopID, "role": domain.RoleEmployee},
			roundedAdd("salary_due", delta, bson.M{"updated_at": time.Now().UTC()}),
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if err != nil {
			return notFound(err, "employee")
		}
		if entry != nil {
			if _, err := s.coll(salaryEntriesCollection).InsertOne(sc, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListSalaryEntries(ctx context.Context, shopID string, employeeID string, limit int) ([]domain.SalaryEntry, error) {
	filter := bson.M{"shop_id": shopID}
	if employeeID != "" {
		filter["employee_id"] = employeeID
	}
	cursor, err := s.coll(salaryEntriesCollection).Find(ctx, filter, findOptions(bson.D{{Key: "created_at", Value: -1}}, limit))
	if err != nil {
		return nil, err
	}
	entries := make([]domain.SalaryEntry, 0, 16)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// applyAccrual moves salary_due for every entry inside the session.
// Employees outside the shop are skipped.
func (s *Store) applyAccrual(sc mongo.SessionContext, shopID string, accrual store.LabourAccrual) error {
	now := time.Now().UTC()
	for _, entry := range accrual.Entries {
		if _, err := s.coll(usersCollection).UpdateOne(sc,
			bson.M{"_id": entry.EmployeeID, "shop_id": shopID},
			roundedAdd("salary_due", entry.LabourCost, bson.M{"updated_at": now})); err != nil {
			return err
		}
	}
	if len(accrual.Audit) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(accrual.Audit))
	for _, audit := range accrual.Audit {
		docs = append(docs, audit)
	}
	_, err := s.coll(salaryEntriesCollection).InsertMany(sc, docs)
	return err
}
