package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vivekyadav247/billmngapp-backend/internal/domain"
	"github.com/vivekyadav247/billmngapp-backend/internal/money"
)

func inRange(from time.Time, to time.Time) bson.M {
	return bson.M{"$gte": from.UTC(), "$lt": to.UTC()}
}

func aggregateAll(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, out interface{}) error {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (s *Store) SalesTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalesTotals, error) {
	var rows []struct {
		Bills  int     `bson:"bills"`
		Cash   float64 `bson:"cash"`
		Online float64 `bson:"online"`
		Udhar  float64 `bson:"udhar"`
		Total  float64 `bson:"total"`
	}
	err := aggregateAll(ctx, s.coll(billsCollection), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shop_id": shopID, "created_at": inRange(from, to)}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"bills":  bson.M{"$sum": 1},
			"cash":   bson.M{"$sum": "$payment_split.cash"},
			"online": bson.M{"$sum": "$payment_split.online"},
			"udhar":  bson.M{"$sum": "$payment_split.udhar"},
			"total":  bson.M{"$sum": "$total_amount"},
		}}},
	}, &rows)
	if err != nil || len(rows) == 0 {
		return domain.SalesTotals{}, err
	}
	r := rows[0]
	return domain.SalesTotals{
		Bills:  r.Bills,
		Cash:   money.Round2(r.Cash),
		Online: money.Round2(r.Online),
		Udhar:  money.Round2(r.Udhar),
		Total:  money.Round2(r.Total),
	}, nil
}

func (s *Store) TopItems(ctx context.Context, shopID string, from time.Time, to time.Time, limit int) ([]domain.TopItem, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shop_id": shopID, "created_at": inRange(from, to)}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$name",
			"quantity_sold": bson.M{"$sum": "$qty"},
			"revenue":       bson.M{"$sum": "$subtotal"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "quantity_sold", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	items := make([]domain.TopItem, 0, 16)
	if err := aggregateAll(ctx, s.coll(lineItemsCollection), pipeline, &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Revenue = money.Round2(items[i].Revenue)
	}
	return items, nil
}

func (s *Store) SalaryTotals(ctx context.Context, shopID string, from time.Time, to time.Time) (domain.SalaryTotals, error) {
	var due []struct {
		Total float64 `bson:"total"`
	}
	err := aggregateAll(ctx, s.coll(usersCollection), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"role": domain.RoleEmployee, "shop_id": shopID, "is_active": true}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$salary_due"}}}},
	}, &due)
	if err != nil {
		return domain.SalaryTotals{}, err
	}

	var byType []struct {
		Type  string  `bson:"_id"`
		Total float64 `bson:"total"`
	}
	err = aggregateAll(ctx, s.coll(salaryEntriesCollection), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shop_id": shopID, "created_at": inRange(from, to)}}},
		{{Key: "$group", Value: bson.M{"_id": "$type", "total": bson.M{"$sum": "$amount"}}}},
	}, &byType)
	if err != nil {
		return domain.SalaryTotals{}, err
	}

	var totals domain.SalaryTotals
	if len(due) > 0 {
		totals.SalaryDue = money.Round2(due[0].Total)
	}
	for _, row := range byType {
		switch row.Type {
		case domain.SalaryTypeManual:
			totals.ManualSalary = money.Round2(row.Total)
		case domain.SalaryTypeLabour:
			totals.LabourAccrual = money.Round2(row.Total)
		}
	}
	return totals, nil
}

func (s *Store) UnitsSold(ctx context.Context, shopID string) (map[string]domain.TopItem, error) {
	var rows []struct {
		ItemID       string  `bson:"_id"`
		Name         string  `bson:"name"`
		QuantitySold float64 `bson:"quantity_sold"`
		Revenue      float64 `bson:"revenue"`
	}
	err := aggregateAll(ctx, s.coll(lineItemsCollection), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shop_id": shopID, "inventory_item_id": bson.M{"$exists": true, "$ne": ""}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           "$inventory_item_id",
			"name":          bson.M{"$max": "$name"},
			"quantity_sold": bson.M{"$sum": "$qty"},
			"revenue":       bson.M{"$sum": "$subtotal"},
		}}},
	}, &rows)
	if err != nil {
		return nil, err
	}

	sold := make(map[string]domain.TopItem, len(rows))
	for _, row := range rows {
		sold[row.ItemID] = domain.TopItem{Name: row.Name, QuantitySold: row.QuantitySold, Revenue: money.Round2(row.Revenue)}
	}
	return sold, nil
}
