package mock

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "mensago/internal/log"
	"mensago/internal/snapshot"
	"mensago/models"
)

// New returns an in-memory sqlite database seeded with representative
// canteen data: a login, a small supplier catalogue with allergen
// declarations, two costed recipes and a planned week.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:mensago-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Ingredient{},
		&models.AllergenDeclaration{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.Menu{},
	); err != nil {
		return nil, err
	}

	if err := seed(ctx, db); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return db, nil
}

func seed(ctx context.Context, db *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte("canteen"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.User{
		Name:         "Morgan Kitchen",
		Email:        "morgan@mensago.app",
		PasswordHash: string(password),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}

	ingredients := []models.Ingredient{
		{
			ProductCode: "FLR-001",
			Name:        "Plain Flour",
			Supplier:    "Millstone Foods",
			PackWeight:  16,
			Unit:        "kg",
			Price:       12.80,
		},
		{
			ProductCode: "CHS-204",
			Name:        "Mature Cheddar",
			Supplier:    "Dairy Direct",
			PackWeight:  5,
			Unit:        "kg",
			Price:       27.50,
		},
		{
			ProductCode: "TOM-118",
			Name:        "Chopped Tomatoes",
			Supplier:    "Harvest Wholesale",
			PackWeight:  2.5,
			Unit:        "kg",
			Price:       3.10,
		},
		{
			ProductCode: "OAT-330",
			Name:        "Rolled Oats",
			Supplier:    "Millstone Foods",
			PackWeight:  10,
			Unit:        "kg",
			Price:       9.40,
		},
	}
	for i := range ingredients {
		if err := db.WithContext(ctx).Create(&ingredients[i]).Error; err != nil {
			return err
		}
	}

	declarations := []models.AllergenDeclaration{
		{ProductCode: "FLR-001", AllergenName: "Gluten", Status: "has"},
		{ProductCode: "CHS-204", AllergenName: "Milk", Status: "has"},
		{ProductCode: "OAT-330", AllergenName: "Gluten", Status: "may"},
		{ProductCode: "OAT-330", AllergenName: "Nuts", Status: "may"},
	}
	for i := range declarations {
		if err := db.WithContext(ctx).Create(&declarations[i]).Error; err != nil {
			return err
		}
	}

	bake := models.Recipe{
		Name:         "Tomato Pasta Bake",
		Code:         "MAIN-01",
		Servings:     24,
		Instructions: "Layer the sauce and pasta, top with cheddar and bake until golden.",
	}
	flapjack := models.Recipe{
		Name:     "Oat Flapjack",
		Code:     "DES-03",
		Servings: 30,
		Notes:    "Holds for two days in the cold store.",
	}
	if err := db.WithContext(ctx).Create(&bake).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(&flapjack).Error; err != nil {
		return err
	}

	lines := map[uint][]snapshot.Line{
		bake.ID: {
			{ProductCode: "FLR-001", Quantity: 2, Unit: "kg"},
			{ProductCode: "CHS-204", Quantity: 1.5, Unit: "kg"},
			{ProductCode: "TOM-118", Quantity: 5, Unit: "kg"},
		},
		flapjack.ID: {
			{ProductCode: "OAT-330", Quantity: 3, Unit: "kg"},
		},
	}
	for recipeID, recipeLines := range lines {
		if _, err := snapshot.ReplaceLines(ctx, db, recipeID, recipeLines); err != nil {
			return err
		}
	}

	menu := models.Menu{
		Name:          "Autumn Week 1",
		WeekStartDate: "2026-09-07",
	}
	if err := menu.SetDay("monday", &models.DayMenu{
		LunchOption1: &bake.ID,
		Dessert:      &flapjack.ID,
	}); err != nil {
		return err
	}
	if err := menu.SetDay("wednesday", &models.DayMenu{
		LunchOption1: &bake.ID,
	}); err != nil {
		return err
	}
	if err := menu.SetOptions(&models.DailyOptions{Option1: &flapjack.ID}); err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(&menu).Error; err != nil {
		return err
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
