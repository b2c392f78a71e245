package entity

import "time"

// TransactionLog 导入的加油交易流水（csv_import_log）
// 由导入模块写入，分析引擎只读
type TransactionLog struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID string `gorm:"column:transaction_id_asersi;type:varchar(50);uniqueIndex;not null"`

	Tanggal string `gorm:"column:tanggal;not null"` // 交易日期（YYYY-MM-DD）
	Jam     string `gorm:"column:jam;not null"`     // 交易时间（HH:MM:SS）

	MOR           string `gorm:"column:mor"`
	Provinsi      string `gorm:"column:provinsi"`
	KotaKabupaten string `gorm:"column:kota_kabupaten"`
	NoSPBU        string `gorm:"column:no_spbu"`
	NoNozzle      string `gorm:"column:no_nozzle"`
	NoDispenser   string `gorm:"column:no_dispenser"`
	Produk        string `gorm:"column:produk"`

	VolumeLiter     *float64 `gorm:"column:volume_liter;type:decimal(10,3)"`
	PenjualanRupiah *float64 `gorm:"column:penjualan_rupiah;type:decimal(15,2)"`

	Operator            string `gorm:"column:operator"`
	ModeTransaksi       string `gorm:"column:mode_transaksi"`
	PlatNomor           string `gorm:"column:plat_nomor"`
	NIK                 string `gorm:"column:nik"`
	SektorNonKendaraan  string `gorm:"column:sektor_non_kendaraan"`
	JumlahRodaKendaraan string `gorm:"column:jumlah_roda_kendaraan"`
	Kuota               string `gorm:"column:kuota"`
	WarnaPlat           string `gorm:"column:warna_plat"`

	DailySummaryID int64 `gorm:"column:daily_summary_id;index:idx_daily_summary"`

	// 导入阶段统计的重复次数（DUPLICATE_TRANSACTION 规则直接信任该值）
	ImportAttemptCount int `gorm:"column:import_attempt_count;default:1"`
	DuplicateCount     int `gorm:"column:batch_original_duplicate_count;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName 指定表名
func (TransactionLog) TableName() string {
	return "csv_import_log"
}
