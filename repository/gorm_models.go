package repository

// Row types for the two relational schemas. They double as AutoMigrate
// targets for local development and tests.

// lookupProduct is a row of the flat products table used by the lookup schema.
type lookupProduct struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	Slug      string `gorm:"column:slug;index"`
	Status    string `gorm:"column:status;index"`
	Type      string `gorm:"column:type;index"`
	ParentID  int64  `gorm:"column:parent_id;index"`
	MenuOrder int    `gorm:"column:menu_order"`
}

func (lookupProduct) TableName() string { return "products" }

// lookupSKU holds the SKU of a product. Blank SKUs are stored as NULL.
type lookupSKU struct {
	ProductID int64   `gorm:"column:product_id;primaryKey"`
	SKU       *string `gorm:"column:sku;uniqueIndex:idx_product_meta_lookup_sku,where:sku IS NOT NULL AND sku <> ''"`
}

func (lookupSKU) TableName() string { return "product_meta_lookup" }

type lookupMeta struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	ProductID int64  `gorm:"column:product_id;index"`
	MetaKey   string `gorm:"column:meta_key;index"`
	MetaValue string `gorm:"column:meta_value"`
}

func (lookupMeta) TableName() string { return "product_meta" }

// post is a row of the legacy posts table.
type post struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	PostTitle  string `gorm:"column:post_title"`
	PostName   string `gorm:"column:post_name"`
	PostStatus string `gorm:"column:post_status;index"`
	PostType   string `gorm:"column:post_type;index"`
	PostParent int64  `gorm:"column:post_parent;index"`
	MenuOrder  int    `gorm:"column:menu_order"`
}

func (post) TableName() string { return "posts" }

// postMeta is the key/value table holding _sku, _product_type and GTIN keys.
type postMeta struct {
	MetaID    int64  `gorm:"column:meta_id;primaryKey"`
	PostID    int64  `gorm:"column:post_id;index"`
	MetaKey   string `gorm:"column:meta_key;index"`
	MetaValue string `gorm:"column:meta_value;uniqueIndex:idx_postmeta_sku,where:meta_key = '_sku' AND meta_value <> ''"`
}

func (postMeta) TableName() string { return "postmeta" }

// productCategory assigns a category slug to a product; position orders them.
type productCategory struct {
	ProductID int64  `gorm:"column:product_id;primaryKey"`
	Slug      string `gorm:"column:slug;primaryKey"`
	Position  int    `gorm:"column:position"`
}

func (productCategory) TableName() string { return "product_categories" }

// LookupSchema and PostMetaSchema list the models to AutoMigrate per schema.
var (
	LookupSchema   = []interface{}{&lookupProduct{}, &lookupSKU{}, &lookupMeta{}, &productCategory{}, &optionRow{}}
	PostMetaSchema = []interface{}{&post{}, &postMeta{}, &productCategory{}, &optionRow{}}
)

// scan targets

type idRow struct {
	ID int64 `gorm:"column:id"`
}

type productRow struct {
	ID       int64  `gorm:"column:id"`
	Name     string `gorm:"column:name"`
	Slug     string `gorm:"column:slug"`
	Status   string `gorm:"column:status"`
	Type     string `gorm:"column:type"`
	ParentID int64  `gorm:"column:parent_id"`
	SKU      string `gorm:"column:sku"`
}

type metaRow struct {
	MetaKey   string `gorm:"column:meta_key"`
	MetaValue string `gorm:"column:meta_value"`
}

type skuOwnerRow struct {
	SKU       string `gorm:"column:sku"`
	ProductID int64  `gorm:"column:product_id"`
}

type keyCountRow struct {
	MetaKey string `gorm:"column:meta_key"`
	Count   int64  `gorm:"column:count"`
}
