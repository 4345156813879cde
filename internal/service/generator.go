package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/pkg/types"
)

// GeneratorOptions sizes a synthetic data set.
type GeneratorOptions struct {
	Items         int
	Inspectors    int
	Laboratories  int
	Grants        int
	Conversations int
	Experiments   int
	Seed          int64
}

// DefaultGeneratorOptions is the course-project sample size.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Items:         200,
		Inspectors:    30,
		Laboratories:  8,
		Grants:        60,
		Conversations: 100,
		Experiments:   150,
	}
}

// Generator seeds the database with a plausible synthetic data set for
// demos and load testing. Every insert goes through BatchInsert with
// ON CONFLICT DO NOTHING, so re-running against a populated database
// is safe.
type Generator struct {
	daos *dao.DAOs
	log  *slog.Logger
	rng  *rand.Rand
}

// NewGenerator builds a generator. A non-zero seed makes the data set
// reproducible.
func NewGenerator(daos *dao.DAOs, log *slog.Logger, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		daos: daos,
		log:  log.With("component", "generator"),
		rng:  rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
	}
}

// Counts reports how many rows each stage inserted.
type Counts struct {
	Items         int64
	Inspectors    int64
	Laboratories  int64
	Grants        int64
	Conversations int64
	Messages      int64
	Experiments   int64
	DataPoints    int64
	Configs       int64
}

var (
	herbNames = []string{
		"一枝黄花", "丁香", "人参", "三七", "大黄", "山药", "川芎", "丹参",
		"甘草", "白术", "当归", "黄芪", "黄连", "金银花", "枸杞子", "菊花",
	}
	herbPinyin = []string{
		"yizhihuanghua", "dingxiang", "renshen", "sanqi", "dahuang", "shanyao",
		"chuanxiong", "danshen", "gancao", "baizhu", "danggui", "huangqi",
		"huanglian", "jinyinhua", "gouqizi", "juhua",
	}
	itemCategories  = []string{"根及根茎类", "花类", "果实种子类", "全草类", "皮类"}
	departments     = []string{"中药检验科", "化学检验科", "生物检验科", "质量管理科"}
	inspectorTitles = []string{"主任药师", "副主任药师", "主管药师", "药师"}
	certLevels      = []string{"初级", "中级", "高级"}
	accessLevels    = []string{types.AccessNormal, types.AccessAdvanced, types.AccessAdmin}
	sessionTypes    = []string{"查询", "咨询", "实验指导", "问题反馈"}
	topics          = []string{"含量测定方法", "药材鉴别", "标准品使用", "杂质检查", "溶出度测试"}
	experimentTypes = []string{"含量测定", "鉴别试验", "杂质检查", "水分测定", "重金属检查"}

	measurementTypes = []string{"含量", "纯度", "pH值", "溶解度", "熔点"}
	measurementUnits = []string{"%", "%", "", "mg/mL", "°C"}
)

// Generate runs all stages in dependency order.
func (g *Generator) Generate(ctx context.Context, opts GeneratorOptions) (*Counts, error) {
	counts := &Counts{}
	stages := []struct {
		name string
		run  func(context.Context, GeneratorOptions, *Counts) error
	}{
		{"items", g.generateItems},
		{"inspectors", g.generateInspectors},
		{"laboratories", g.generateLaboratories},
		{"grants", g.generateGrants},
		{"conversations", g.generateConversations},
		{"experiments", g.generateExperiments},
		{"configs", g.generateConfigs},
	}
	for _, stage := range stages {
		if err := stage.run(ctx, opts, counts); err != nil {
			return counts, fmt.Errorf("generate %s: %w", stage.name, err)
		}
	}
	g.log.Info("sample data generated",
		"items", counts.Items, "inspectors", counts.Inspectors,
		"laboratories", counts.Laboratories, "grants", counts.Grants,
		"conversations", counts.Conversations, "messages", counts.Messages,
		"experiments", counts.Experiments, "data_points", counts.DataPoints)
	return counts, nil
}

func (g *Generator) generateItems(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	recs := make([]types.Record, 0, opts.Items)
	for i := 0; i < opts.Items; i++ {
		n := i % len(herbNames)
		recs = append(recs, types.Record{
			"volume":      g.rng.IntN(4) + 1,
			"doc_id":      49000 + i,
			"name_cn":     herbNames[n],
			"name_pinyin": herbPinyin[n],
			"category":    pick(g.rng, itemCategories),
			"content":     fmt.Sprintf("%s的质量标准与检验方法。", herbNames[n]),
		})
	}
	n, err := g.daos.Items.BatchInsert(ctx, recs, 0, "ON CONSTRAINT uq_items_volume_doc DO NOTHING")
	counts.Items = n
	return err
}

func (g *Generator) generateInspectors(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	recs := make([]types.Record, 0, opts.Inspectors)
	for i := 0; i < opts.Inspectors; i++ {
		recs = append(recs, types.Record{
			"employee_no":         fmt.Sprintf("YJ2025%03d", i+1),
			"name":                fmt.Sprintf("检验员%03d", i+1),
			"phone":               fmt.Sprintf("138%08d", g.rng.IntN(100000000)),
			"email":               fmt.Sprintf("inspector%03d@pharma.example", i+1),
			"department":          pick(g.rng, departments),
			"title":               pick(g.rng, inspectorTitles),
			"certification_level": pick(g.rng, certLevels),
			"join_date":           daysAgo(g.rng, 3650),
			"is_active":           g.rng.Float64() < 0.9,
		})
	}
	n, err := g.daos.Inspectors.BatchInsert(ctx, recs, 0, "ON CONSTRAINT uq_inspectors_employee_no DO NOTHING")
	counts.Inspectors = n
	return err
}

func (g *Generator) generateLaboratories(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	recs := make([]types.Record, 0, opts.Laboratories)
	for i := 0; i < opts.Laboratories; i++ {
		recs = append(recs, types.Record{
			"lab_code":        fmt.Sprintf("LAB%03d", i+1),
			"lab_name":        fmt.Sprintf("第%d检验实验室", i+1),
			"location":        fmt.Sprintf("%d号楼%d层", i/4+1, i%4+1),
			"certification":   "CNAS",
			"equipment_level": pick(g.rng, certLevels),
		})
	}
	n, err := g.daos.Laboratories.BatchInsert(ctx, recs, 0, "ON CONSTRAINT uq_laboratories_lab_code DO NOTHING")
	counts.Laboratories = n
	return err
}

func (g *Generator) generateGrants(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	inspectorIDs, err := g.tableIDs(ctx, g.daos.Inspectors.Store)
	if err != nil {
		return err
	}
	labIDs, err := g.tableIDs(ctx, g.daos.Laboratories.Store)
	if err != nil {
		return err
	}
	if len(inspectorIDs) == 0 || len(labIDs) == 0 {
		return nil
	}
	want := opts.Grants
	if ceil := len(inspectorIDs) * len(labIDs); want > ceil {
		want = ceil
	}
	seen := map[[2]int64]struct{}{}
	recs := make([]types.Record, 0, want)
	for len(recs) < want {
		pair := [2]int64{pick(g.rng, inspectorIDs), pick(g.rng, labIDs)}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		recs = append(recs, types.Record{
			"inspector_id": pair[0],
			"lab_id":       pair[1],
			"access_level": pick(g.rng, accessLevels),
			"granted_date": daysAgo(g.rng, 365),
		})
	}
	n, err := g.daos.Inspectors.Access().BatchInsert(ctx, recs, 0, "ON CONSTRAINT uq_access_inspector_lab DO NOTHING")
	counts.Grants = n
	return err
}

func (g *Generator) generateConversations(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	inspectorIDs, err := g.tableIDs(ctx, g.daos.Inspectors.Store)
	if err != nil {
		return err
	}
	itemIDs, err := g.tableIDs(ctx, g.daos.Items.Store)
	if err != nil {
		return err
	}
	if len(inspectorIDs) == 0 {
		return nil
	}

	for i := 0; i < opts.Conversations; i++ {
		start := time.Now().Add(-time.Duration(g.rng.IntN(90*24)+1) * time.Hour)
		end := start.Add(time.Duration(g.rng.IntN(55)+5) * time.Minute)
		conversationID, err := g.daos.Conversations.Create(ctx, types.Record{
			"inspector_id":  pick(g.rng, inspectorIDs),
			"start_time":    start,
			"end_time":      end,
			"session_type":  pick(g.rng, sessionTypes),
			"context_topic": pick(g.rng, topics),
		})
		if err != nil {
			return err
		}
		counts.Conversations++

		messageCount := g.rng.IntN(8) + 8
		msgs := make([]types.Record, 0, messageCount)
		for seq := 1; seq <= messageCount; seq++ {
			msg := types.Record{
				"conversation_id": conversationID,
				"message_seq":     seq,
				"created_at":      start.Add(time.Duration(seq) * time.Minute),
			}
			if seq%2 == 1 {
				msg["sender_type"] = types.SenderInspector
				msg["message_text"] = fmt.Sprintf("请问%s如何检验？", pick(g.rng, herbNames))
				msg["intent"] = "查询"
				msg["confidence_score"] = nil
				msg["response_time_ms"] = nil
				msg["referenced_item_id"] = nil
			} else {
				msg["sender_type"] = types.SenderSystem
				msg["message_text"] = "根据药典标准，建议按含量测定方法进行检验。"
				msg["intent"] = "回答"
				msg["confidence_score"] = round4(g.rng.Float64()*0.5 + 0.5)
				msg["response_time_ms"] = g.rng.IntN(1950) + 50
				if len(itemIDs) > 0 && g.rng.Float64() > 0.5 {
					msg["referenced_item_id"] = pick(g.rng, itemIDs)
				} else {
					msg["referenced_item_id"] = nil
				}
			}
			msgs = append(msgs, msg)
		}
		n, err := g.daos.Messages.BatchInsert(ctx, msgs, 0, "ON CONSTRAINT uq_messages_conversation_seq DO NOTHING")
		if err != nil {
			return err
		}
		counts.Messages += n
		if _, err := g.daos.Conversations.UpdateSessionEnd(ctx, conversationID, end, int(n)); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generateExperiments(ctx context.Context, opts GeneratorOptions, counts *Counts) error {
	inspectorIDs, err := g.tableIDs(ctx, g.daos.Inspectors.Store)
	if err != nil {
		return err
	}
	labIDs, err := g.tableIDs(ctx, g.daos.Laboratories.Store)
	if err != nil {
		return err
	}
	itemIDs, err := g.tableIDs(ctx, g.daos.Items.Store)
	if err != nil {
		return err
	}
	if len(inspectorIDs) == 0 || len(labIDs) == 0 || len(itemIDs) == 0 {
		return nil
	}

	statuses := []string{types.StatusInProgress, types.StatusCompleted, types.StatusAborted}
	for i := 0; i < opts.Experiments; i++ {
		date := time.Now().AddDate(0, 0, -(g.rng.IntN(365) + 1))
		start := date.Add(time.Duration(g.rng.IntN(9)+8) * time.Hour)
		status := pick(g.rng, statuses)

		experiment := types.Record{
			"inspector_id":    pick(g.rng, inspectorIDs),
			"lab_id":          pick(g.rng, labIDs),
			"item_id":         pick(g.rng, itemIDs),
			"experiment_type": pick(g.rng, experimentTypes),
			"batch_no":        fmt.Sprintf("BATCH%04d", g.rng.IntN(9000)+1000),
			"experiment_date": date,
			"start_time":      start,
			"status":          status,
		}
		if status == types.StatusCompleted {
			experiment["end_time"] = start.Add(time.Duration(g.rng.IntN(7)+1) * time.Hour)
			if g.rng.Float64() < 0.8 {
				experiment["result"] = types.ResultPass
			} else {
				experiment["result"] = types.ResultFail
			}
		}

		pointCount := g.rng.IntN(5) + 3
		points := make([]types.Record, 0, pointCount)
		for j := 0; j < pointCount; j++ {
			typeIdx := g.rng.IntN(len(measurementTypes))
			value := round4(g.rng.Float64() * 100)
			points = append(points, types.Record{
				"measurement_type":  measurementTypes[typeIdx],
				"measurement_unit":  measurementUnits[typeIdx],
				"measurement_value": value,
				"standard_min":      round4(value * 0.8),
				"standard_max":      round4(value * 1.2),
				"measurement_time":  date.Add(time.Duration(j+1) * time.Hour),
			})
		}
		if _, err := g.daos.Experiments.CreateWithDataPoints(ctx, experiment, derivePoints(points)); err != nil {
			return err
		}
		counts.Experiments++
		counts.DataPoints += int64(pointCount)
	}
	return nil
}

func (g *Generator) generateConfigs(ctx context.Context, _ GeneratorOptions, counts *Counts) error {
	recs := []types.Record{
		{"config_key": "ai.model_version", "config_value": "2.3.1", "config_type": "string", "category": "ai", "is_editable": true, "description": "部署的问答模型版本"},
		{"config_key": "ai.confidence_threshold", "config_value": "0.75", "config_type": "float", "category": "ai", "is_editable": true, "description": "低于该置信度的回答需要人工复核"},
		{"config_key": "session.timeout_minutes", "config_value": "30", "config_type": "int", "category": "session", "is_editable": true, "description": "会话闲置超时"},
		{"config_key": "experiment.auto_qualify", "config_value": "true", "config_type": "bool", "category": "experiment", "is_editable": true, "description": "是否按标准范围自动判定数据点"},
		{"config_key": "system.schema_version", "config_value": "1", "config_type": "int", "category": "system", "is_editable": false, "description": "架构版本号"},
	}
	n, err := g.daos.Configs.BatchInsert(ctx, recs, 0, "(config_key) DO NOTHING")
	counts.Configs = n
	return err
}

func (g *Generator) tableIDs(ctx context.Context, store *dao.Store) ([]int64, error) {
	recs, _, err := store.ExecQuery(ctx,
		fmt.Sprintf("SELECT %s AS id FROM %s ORDER BY 1", store.IDColumn(), store.Table()))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		if id, ok := types.AsInt64(rec["id"]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// derivePoints fills is_qualified on points that lack it.
func derivePoints(points []types.Record) []types.Record {
	for _, p := range points {
		if _, ok := p["is_qualified"]; !ok {
			if q, ok := dao.DeriveQualified(p); ok {
				p["is_qualified"] = q
			}
		}
	}
	return points
}

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func daysAgo(rng *rand.Rand, max int) time.Time {
	return time.Now().AddDate(0, 0, -(rng.IntN(max) + 1))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
