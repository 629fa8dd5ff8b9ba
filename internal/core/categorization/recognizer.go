package categorization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThomasMcCrossin/curlys-books/config"
	"github.com/ThomasMcCrossin/curlys-books/internal/core/receipts"
	"github.com/shopspring/decimal"
)

// ErrRecognizerTimeout marks an LLM call that exceeded its deadline.
var ErrRecognizerTimeout = errors.New("categorization: recognizer call timed out")

// Recognizer is Stage 1: cache-first product recognition with an LLM
// fallback for unseen (vendor, sku) pairs.
type Recognizer struct {
	cfg    config.RecognizerConfig
	client LLMClient
	cache  *Cache
	lookup *ProductLookup
	logger *slog.Logger
}

func NewRecognizer(cfg config.RecognizerConfig, client LLMClient, cache *Cache, lookup *ProductLookup, logger *slog.Logger) *Recognizer {
	return &Recognizer{
		cfg:    cfg,
		client: client,
		cache:  cache,
		lookup: lookup,
		logger: logger,
	}
}

// Recognize resolves one line item. The returned warning, when non-nil,
// belongs on the parent receipt (timeouts and malformed model output degrade
// the line, they never abort the receipt).
func (r *Recognizer) Recognize(ctx context.Context, vendor string, sku *string, rawDescription string) (*RecognizedItem, *receipts.ValidationWarning, error) {
	// Step 1: cache first. A hit costs nothing and carries the stored
	// confidence from prior runs or human corrections.
	if sku != nil && *sku != "" {
		cached, err := r.cache.Get(ctx, vendor, *sku)
		if err != nil {
			return nil, nil, err
		}
		if cached != nil {
			if err := r.cache.Touch(ctx, vendor, *sku); err != nil {
				r.logger.Warn("cache touch failed", "vendor", vendor, "sku", *sku, "error", err)
			}

			confidence := 1.0
			if cached.UserConfidence != nil {
				confidence = cached.UserConfidence.InexactFloat64()
			}

			r.logger.Info("cache hit",
				"vendor", vendor,
				"sku", *sku,
				"category", cached.ProductCategory,
				"times_seen", cached.TimesSeen+1)

			return &RecognizedItem{
				NormalizedDescription: cached.DescriptionNormalized,
				ProductCategory:       cached.ProductCategory,
				Brand:                 cached.Brand,
				Source:                SourceCache,
				Confidence:            confidence,
			}, nil, nil
		}
	}

	r.logger.Info("cache miss, calling recognizer",
		"vendor", vendor,
		"description", rawDescription)

	// Step 1.5: optional web lookup for extra context. Disabled by default.
	var webProduct *WebProduct
	if r.lookup != nil && sku != nil && *sku != "" {
		webProduct = r.lookup.Lookup(ctx, vendor, *sku)
	}

	prompt := buildRecognitionPrompt(vendor, rawDescription, webProduct)

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	completion, err := r.client.Complete(callCtx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			// The pipeline itself was cancelled; propagate.
			return nil, nil, ctx.Err()
		}

		degraded := &RecognizedItem{
			NormalizedDescription: rawDescription,
			ProductCategory:       CategoryUnknown,
			Source:                SourceAI,
			Confidence:            0.0,
		}

		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			r.logger.Error("recognizer timed out", "vendor", vendor, "description", rawDescription)
			return degraded, &receipts.ValidationWarning{
				Type:    receipts.WarningRecognizerTimeout,
				Message: "item recognizer call exceeded its deadline",
				Data:    map[string]any{"description": rawDescription, "timeout_s": r.cfg.CallTimeout.Seconds()},
			}, nil
		}

		r.logger.Error("recognizer call failed", "vendor", vendor, "error", err)
		return degraded, &receipts.ValidationWarning{
			Type:    receipts.WarningRecognizerOutputInvalid,
			Message: "item recognizer call failed",
			Data:    map[string]any{"description": rawDescription, "error": err.Error()},
		}, nil
	}

	cost := CallCost(r.cfg, completion.InputTokens, completion.OutputTokens)

	item, parseErr := parseRecognizerOutput(completion.Text, rawDescription)
	item.Source = SourceAI
	item.AICostUSD = &cost

	if parseErr != nil {
		r.logger.Error("recognizer output invalid",
			"vendor", vendor,
			"response", completion.Text,
			"error", parseErr)
		return item, &receipts.ValidationWarning{
			Type:    receipts.WarningRecognizerOutputInvalid,
			Message: "item recognizer returned malformed output",
			Data:    map[string]any{"description": rawDescription},
		}, nil
	}

	r.logger.Info("recognition complete",
		"vendor", vendor,
		"sku", skuOrEmpty(sku),
		"category", item.ProductCategory,
		"confidence", item.Confidence,
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens,
		"cost_usd", cost.String())

	// Step 3: write through to the cache when the result is solid enough
	// to be worth remembering.
	if sku != nil && *sku != "" &&
		item.ProductCategory != CategoryUnknown &&
		item.Confidence >= r.cfg.CacheWriteThreshold {
		userConfidence := decimal.NewFromFloat(item.Confidence).Round(2)
		err := r.cache.Put(ctx, ProductMapping{
			VendorCanonical:       vendor,
			SKU:                   *sku,
			DescriptionNormalized: item.NormalizedDescription,
			ProductCategory:       item.ProductCategory,
			Brand:                 item.Brand,
			UserConfidence:        &userConfidence,
		})
		if err != nil {
			r.logger.Warn("cache write failed", "vendor", vendor, "sku", *sku, "error", err)
		}
	}

	return item, nil, nil
}

// recognizerOutput is the JSON shape the model must return.
type recognizerOutput struct {
	NormalizedDescription string   `json:"normalized_description"`
	Brand                 *string  `json:"brand"`
	ProductType           *string  `json:"product_type"`
	Category              string   `json:"category"`
	Confidence            *float64 `json:"confidence"`
}

// parseRecognizerOutput extracts the JSON verdict from model text, tolerating
// markdown fences. Failures degrade to unknown at zero confidence.
func parseRecognizerOutput(responseText, fallbackDescription string) (*RecognizedItem, error) {
	degraded := &RecognizedItem{
		NormalizedDescription: fallbackDescription,
		ProductCategory:       CategoryUnknown,
		Confidence:            0.0,
	}

	text := strings.TrimSpace(responseText)
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	text = strings.TrimSpace(text)

	var out recognizerOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return degraded, fmt.Errorf("not valid json: %w", err)
	}

	if out.Category == "" || out.Confidence == nil {
		return degraded, fmt.Errorf("missing category or confidence")
	}

	category := out.Category
	if !IsValidCategory(category) {
		return degraded, fmt.Errorf("category %q not in vocabulary", out.Category)
	}

	normalized := out.NormalizedDescription
	if normalized == "" {
		normalized = fallbackDescription
	}

	return &RecognizedItem{
		NormalizedDescription: normalized,
		ProductCategory:       category,
		Brand:                 out.Brand,
		ProductType:           out.ProductType,
		Confidence:            *out.Confidence,
	}, nil
}

func skuOrEmpty(sku *string) string {
	if sku == nil {
		return ""
	}
	return *sku
}

// buildRecognitionPrompt assembles the structured prompt: vendor context,
// the closed category vocabulary, and confidence calibration guidance.
func buildRecognitionPrompt(vendor, rawDescription string, webProduct *WebProduct) string {
	var sb strings.Builder

	sb.WriteString("You are a product recognition expert for a food service business in Canada.\n\n")
	sb.WriteString("Your task: Expand abbreviated product descriptions and categorize them precisely.\n\n")
	fmt.Fprintf(&sb, "VENDOR: %s\nRAW DESCRIPTION: %s\n", vendor, rawDescription)

	if webProduct != nil {
		sb.WriteString("\nWEB LOOKUP RESULTS (from vendor website):\n")
		if webProduct.ProductName != "" {
			fmt.Fprintf(&sb, "  Product Name: %s\n", webProduct.ProductName)
		}
		if webProduct.Brand != "" {
			fmt.Fprintf(&sb, "  Brand: %s\n", webProduct.Brand)
		}
		if webProduct.CategoryHint != "" {
			fmt.Fprintf(&sb, "  Category Hint: %s\n", webProduct.CategoryHint)
		}
		sb.WriteString("\nUSE THIS INFORMATION to improve categorization accuracy!\n")
	}

	sb.WriteString(`
IMPORTANT WORKFLOW NOTES:
- Your categorization is the FIRST PASS - a human will review ambiguous items
- If the description is vague or has multiple interpretations, provide your best guess but LOWER YOUR CONFIDENCE
- Users will correct misclassifications, which improves the cache over time
- When uncertain, it's better to guess reasonably with low confidence than to mark everything as "unknown"

INSTRUCTIONS:
1. Expand abbreviations to full product name (e.g., "MTN DEW 591ML" becomes "Mountain Dew Citrus Soda 591mL")
2. Identify the brand if recognizable
3. Classify into ONE of the categories below (choose most specific)
4. Set confidence based on certainty:
   - 0.95-0.99: Very confident (clear brand/product like "PEPSI 32 PK")
   - 0.80-0.94: Confident but some ambiguity (clear type but generic brand)
   - 0.60-0.79: Uncertain (vague description, multiple interpretations possible)
   - Below 0.60: Very uncertain (use "unknown" category instead)

VALID CATEGORIES:
`)
	for _, category := range AllCategories() {
		fmt.Fprintf(&sb, "- %s: %s\n", category, categoryDescriptions[category])
	}

	sb.WriteString(`
RESPONSE FORMAT (return ONLY this JSON, no other text):
{
  "normalized_description": "Full product name with proper capitalization",
  "brand": "Brand name if identifiable, or null",
  "product_type": "Generic type (e.g., 'soft drink', 'energy drink')",
  "category": "exact_category_from_list_above",
  "confidence": 0.95
}

Examples:
Input: "MTN DEW 591ML"
Output: {"normalized_description": "Mountain Dew Citrus Soda 591mL", "brand": "Mountain Dew", "product_type": "soft drink", "category": "beverage_soda", "confidence": 0.98}

Input: "HOT ROD 40CT"
Output: {"normalized_description": "Hot Rod Pepperoni Sticks 40 Count", "brand": "Hot Rod", "product_type": "meat snack", "category": "retail_snack", "confidence": 0.92}

Input: "EAST COAST"
Output: {"normalized_description": "East Coast Brand Product", "brand": "East Coast", "product_type": "unknown", "category": "unknown", "confidence": 0.55}

`)
	fmt.Fprintf(&sb, "Now classify: %s\n", rawDescription)

	return sb.String()
}

// categoryDescriptions gives the one-line gloss for each category used in
// the recognizer prompt.
var categoryDescriptions = map[string]string{
	CategoryFoodHotdog:    "Hot dogs, sausages, wieners",
	CategoryFoodSandwich:  "Sandwiches, wraps, subs",
	CategoryFoodPizza:     "Pizza products",
	CategoryFoodFrozen:    "Frozen foods, ice cream",
	CategoryFoodBakery:    "Bread, buns, pastries",
	CategoryFoodDairy:     "Cheese, yogurt, butter (not milk drinks)",
	CategoryFoodMeat:      "Meat, deli products",
	CategoryFoodProduce:   "Fruits, vegetables",
	CategoryFoodOil:       "Cooking oils, fats, shortening (canola, vegetable, olive oil, lard)",
	CategoryFoodCondiment: "Ketchup, mustard, mayo, sauces",
	CategoryFoodPantry:    "Canned goods, pasta, rice, spices",
	CategoryFoodOther:     "Other food items",

	CategoryBeverageSoda:    "Soft drinks, cola, citrus sodas",
	CategoryBeverageWater:   "Bottled water, sparkling water",
	CategoryBeverageEnergy:  "Energy drinks (Red Bull, Monster, etc.)",
	CategoryBeverageSports:  "Sports drinks (Gatorade, Powerade, etc.)",
	CategoryBeverageJuice:   "Juice, juice boxes",
	CategoryBeverageCoffee:  "Coffee products (RTD coffee, cold brew)",
	CategoryBeverageTea:     "Tea products (iced tea, bottled tea)",
	CategoryBeverageMilk:    "Milk-based drinks (chocolate milk, etc.)",
	CategoryBeverageAlcohol: "Beer, wine, liquor",
	CategoryBeverageOther:   "Other beverages",

	CategorySupplementProtein:         "Protein powder, protein bars",
	CategorySupplementVitamin:         "Vitamins, minerals",
	CategorySupplementPreworkout:      "Pre-workout supplements",
	CategorySupplementRecovery:        "Recovery supplements",
	CategorySupplementSportsNutrition: "Sports nutrition products",
	CategorySupplementOther:           "Other supplements",

	CategoryRetailSnack:     "Chips, pretzels, popcorn, meat snacks",
	CategoryRetailCandy:     "Candy, chocolate bars",
	CategoryRetailHealth:    "Health products",
	CategoryRetailAccessory: "Gym accessories, shaker bottles",
	CategoryRetailApparel:   "Clothing, merchandise",
	CategoryRetailOther:     "Other retail goods",

	CategoryFreight:            "Delivery charges, shipping fees",
	CategoryPackagingContainer: "To-go containers, cups",
	CategoryPackagingBag:       "Bags, wrapping",
	CategoryPackagingUtensil:   "Utensils, straws",
	CategorySupplyCleaning:     "Cleaning products",
	CategorySupplyPaper:        "Paper towels, napkins",
	CategorySupplyKitchen:      "Kitchen supplies",
	CategorySupplyOther:        "Other supplies",

	CategoryOfficeSupply:    "Office supplies",
	CategoryRepairEquipment: "Equipment repairs",
	CategoryRepairBuilding:  "Building repairs",
	CategoryMaintenance:     "Maintenance items",
	CategoryEquipment:       "Equipment purchases",
	CategoryDeposit:         "Bottle/can/keg deposits",
	CategoryLicense:         "Licenses, permits",
	CategoryUnknown:         "Cannot determine (use only as last resort)",
}
