package categorization

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Product categories recognized in Stage 1. Detailed categories for the
// classifier and analytics; multiple categories can share a GL account.
// Stage 2 keys on these identifiers, so the set is closed.
const (
	CategoryFoodHotdog    = "food_hotdog"
	CategoryFoodSandwich  = "food_sandwich"
	CategoryFoodPizza     = "food_pizza"
	CategoryFoodFrozen    = "food_frozen"
	CategoryFoodBakery    = "food_bakery"
	CategoryFoodDairy     = "food_dairy"
	CategoryFoodMeat      = "food_meat"
	CategoryFoodProduce   = "food_produce"
	CategoryFoodOil       = "food_oil"
	CategoryFoodCondiment = "food_condiment"
	CategoryFoodPantry    = "food_pantry"
	CategoryFoodOther     = "food_other"

	CategoryBeverageSoda    = "beverage_soda"
	CategoryBeverageWater   = "beverage_water"
	CategoryBeverageEnergy  = "beverage_energy"
	CategoryBeverageSports  = "beverage_sports"
	CategoryBeverageJuice   = "beverage_juice"
	CategoryBeverageCoffee  = "beverage_coffee"
	CategoryBeverageTea     = "beverage_tea"
	CategoryBeverageMilk    = "beverage_milk"
	CategoryBeverageAlcohol = "beverage_alcohol"
	CategoryBeverageOther   = "beverage_other"

	CategorySupplementProtein         = "supplement_protein"
	CategorySupplementVitamin         = "supplement_vitamin"
	CategorySupplementPreworkout      = "supplement_preworkout"
	CategorySupplementRecovery        = "supplement_recovery"
	CategorySupplementSportsNutrition = "supplement_sports_nutrition"
	CategorySupplementOther           = "supplement_other"

	CategoryRetailSnack     = "retail_snack"
	CategoryRetailCandy     = "retail_candy"
	CategoryRetailHealth    = "retail_health"
	CategoryRetailAccessory = "retail_accessory"
	CategoryRetailApparel   = "retail_apparel"
	CategoryRetailOther     = "retail_other"

	CategoryFreight            = "freight"
	CategoryPackagingContainer = "packaging_container"
	CategoryPackagingBag       = "packaging_bag"
	CategoryPackagingUtensil   = "packaging_utensil"
	CategorySupplyCleaning     = "supply_cleaning"
	CategorySupplyPaper        = "supply_paper"
	CategorySupplyKitchen      = "supply_kitchen"
	CategorySupplyOther        = "supply_other"

	CategoryOfficeSupply    = "office_supply"
	CategoryRepairEquipment = "repair_equipment"
	CategoryRepairBuilding  = "repair_building"
	CategoryMaintenance     = "maintenance"
	CategoryEquipment       = "equipment"
	CategoryDeposit         = "deposit"
	CategoryLicense         = "license"
	CategoryUnknown         = "unknown"
)

// categoryAccounts maps each product category to its GL account. Parent
// accounts (5000, 5010, 5020, 5030) roll up children for GIFI/T2125.
var categoryAccounts = map[string]string{
	CategoryFoodHotdog:    "5001",
	CategoryFoodSandwich:  "5002",
	CategoryFoodPizza:     "5003",
	CategoryFoodFrozen:    "5004",
	CategoryFoodBakery:    "5005",
	CategoryFoodDairy:     "5006",
	CategoryFoodMeat:      "5007",
	CategoryFoodProduce:   "5008",
	CategoryFoodOil:       "5009",
	CategoryFoodCondiment: "5099",
	CategoryFoodPantry:    "5099",
	CategoryFoodOther:     "5099",

	CategoryBeverageSoda:    "5011",
	CategoryBeverageWater:   "5012",
	CategoryBeverageEnergy:  "5013",
	CategoryBeverageSports:  "5014",
	CategoryBeverageJuice:   "5015",
	CategoryBeverageCoffee:  "5016",
	CategoryBeverageTea:     "5016",
	CategoryBeverageMilk:    "5017",
	CategoryBeverageAlcohol: "5018",
	CategoryBeverageOther:   "5019",

	CategorySupplementProtein:         "5021",
	CategorySupplementVitamin:         "5022",
	CategorySupplementPreworkout:      "5023",
	CategorySupplementRecovery:        "5024",
	CategorySupplementSportsNutrition: "5025",
	CategorySupplementOther:           "5029",

	CategoryRetailSnack:     "5031",
	CategoryRetailCandy:     "5032",
	CategoryRetailHealth:    "5033",
	CategoryRetailAccessory: "5034",
	CategoryRetailApparel:   "5035",
	CategoryRetailOther:     "5039",

	CategoryFreight:            "5100",
	CategoryPackagingContainer: "5201",
	CategoryPackagingBag:       "5202",
	CategoryPackagingUtensil:   "5203",
	CategorySupplyCleaning:     "5204",
	CategorySupplyPaper:        "5205",
	CategorySupplyKitchen:      "5206",
	CategorySupplyOther:        "5209",

	CategoryOfficeSupply:    "6600",
	CategoryRepairEquipment: "6300",
	CategoryRepairBuilding:  "6300",
	CategoryMaintenance:     "6300",
	CategoryEquipment:       "6300", // overridden at or above the capitalization threshold
	CategoryDeposit:         "9000",
	CategoryLicense:         "6800",
	CategoryUnknown:         "9100",
}

var accountNames = map[string]string{
	"5001": "COGS - Food - Hot Dogs",
	"5002": "COGS - Food - Sandwiches",
	"5003": "COGS - Food - Pizza",
	"5004": "COGS - Food - Frozen",
	"5005": "COGS - Food - Bakery",
	"5006": "COGS - Food - Dairy",
	"5007": "COGS - Food - Meat/Deli",
	"5008": "COGS - Food - Produce",
	"5009": "COGS - Food - Cooking Oil/Fats",
	"5099": "COGS - Food - Other",
	"5011": "COGS - Beverage - Soda",
	"5012": "COGS - Beverage - Water",
	"5013": "COGS - Beverage - Energy Drinks",
	"5014": "COGS - Beverage - Sports Drinks",
	"5015": "COGS - Beverage - Juice",
	"5016": "COGS - Beverage - Coffee/Tea",
	"5017": "COGS - Beverage - Milk Products",
	"5018": "COGS - Beverage - Alcohol",
	"5019": "COGS - Beverage - Other",
	"5021": "COGS - Supplements - Protein",
	"5022": "COGS - Supplements - Vitamins",
	"5023": "COGS - Supplements - Pre-Workout",
	"5024": "COGS - Supplements - Recovery",
	"5025": "COGS - Supplements - Sports Nutrition",
	"5029": "COGS - Supplements - Other",
	"5031": "COGS - Retail - Snacks/Chips",
	"5032": "COGS - Retail - Candy/Chocolate",
	"5033": "COGS - Retail - Health Products",
	"5034": "COGS - Retail - Accessories",
	"5035": "COGS - Retail - Apparel",
	"5039": "COGS - Retail - Other",
	"5100": "Freight In",
	"5201": "Packaging - Containers/Cups",
	"5202": "Packaging - Bags/Wrapping",
	"5203": "Packaging - Utensils/Straws",
	"5204": "Supplies - Cleaning",
	"5205": "Supplies - Paper Products",
	"5206": "Supplies - Kitchen",
	"5209": "Supplies - Other",
	"6300": "Repairs & Maintenance",
	"6600": "Office Supplies",
	"6800": "Licenses & Permits",
	"9000": "Deposits - Bottle/Container",
	"9100": "Pending Receipt - No ITC",
	"1500": "Equipment & Fixtures",
}

// AllCategories lists the closed category vocabulary in prompt order.
func AllCategories() []string {
	return []string{
		CategoryFoodHotdog, CategoryFoodSandwich, CategoryFoodPizza, CategoryFoodFrozen,
		CategoryFoodBakery, CategoryFoodDairy, CategoryFoodMeat, CategoryFoodProduce,
		CategoryFoodOil, CategoryFoodCondiment, CategoryFoodPantry, CategoryFoodOther,
		CategoryBeverageSoda, CategoryBeverageWater, CategoryBeverageEnergy, CategoryBeverageSports,
		CategoryBeverageJuice, CategoryBeverageCoffee, CategoryBeverageTea, CategoryBeverageMilk,
		CategoryBeverageAlcohol, CategoryBeverageOther,
		CategorySupplementProtein, CategorySupplementVitamin, CategorySupplementPreworkout,
		CategorySupplementRecovery, CategorySupplementSportsNutrition, CategorySupplementOther,
		CategoryRetailSnack, CategoryRetailCandy, CategoryRetailHealth, CategoryRetailAccessory,
		CategoryRetailApparel, CategoryRetailOther,
		CategoryFreight, CategoryPackagingContainer, CategoryPackagingBag, CategoryPackagingUtensil,
		CategorySupplyCleaning, CategorySupplyPaper, CategorySupplyKitchen, CategorySupplyOther,
		CategoryOfficeSupply, CategoryRepairEquipment, CategoryRepairBuilding, CategoryMaintenance,
		CategoryEquipment, CategoryDeposit, CategoryLicense, CategoryUnknown,
	}
}

// IsValidCategory reports whether a category is part of the closed set.
func IsValidCategory(category string) bool {
	_, ok := categoryAccounts[category]
	return ok
}

// AccountMapper is Stage 2: deterministic category-to-account mapping.
// No I/O, no AI.
type AccountMapper struct {
	capitalizationThreshold decimal.Decimal
	logger                  *slog.Logger
}

func NewAccountMapper(capitalizationThreshold decimal.Decimal, logger *slog.Logger) *AccountMapper {
	return &AccountMapper{
		capitalizationThreshold: capitalizationThreshold,
		logger:                  logger,
	}
}

// Map resolves a product category to a GL account.
//
// Equipment at or above the capitalization threshold becomes a fixed asset
// (1500) and is flagged for review; below it, it expenses to repairs (6300).
// Unknown always lands on 9100 and is flagged.
func (m *AccountMapper) Map(productCategory string, lineTotal decimal.Decimal) AccountMapping {
	category := productCategory
	if !IsValidCategory(category) {
		m.logger.Warn("unknown product category, treating as unknown", "category", productCategory)
		category = CategoryUnknown
	}

	accountCode := categoryAccounts[category]
	requiresReview := false

	if category == CategoryEquipment {
		if lineTotal.Abs().GreaterThanOrEqual(m.capitalizationThreshold) {
			accountCode = "1500"
			requiresReview = true
			m.logger.Info("equipment capitalized",
				"amount", lineTotal.StringFixed(2),
				"threshold", m.capitalizationThreshold.StringFixed(2))
		} else {
			accountCode = "6300"
		}
	}

	if category == CategoryUnknown {
		requiresReview = true
	}

	return AccountMapping{
		AccountCode:    accountCode,
		AccountName:    accountNames[accountCode],
		Confidence:     1.0,
		RequiresReview: requiresReview,
		MappingRule:    fmt.Sprintf("%s → %s", category, accountCode),
	}
}

// AccountName returns the display name for an account code.
func AccountName(accountCode string) string {
	return accountNames[accountCode]
}
