package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"nodulesynth/internal/models"
	"nodulesynth/pkg/annotations"
	"nodulesynth/pkg/blend"
	"nodulesynth/pkg/catalog"
	"nodulesynth/pkg/config"
	"nodulesynth/pkg/drr"
	"nodulesynth/pkg/imageio"
	"nodulesynth/pkg/interpolation"
	"nodulesynth/pkg/logger"
	"nodulesynth/pkg/synthesis"
	"nodulesynth/pkg/visualization"
)

// options are the command line settings layered over the config file
type options struct {
	configPath     string
	envFile        string
	input          string
	nodules        string
	output         string
	extractSlices  bool
	slicesDir      string
	previewDir     string
	debug          bool
	compressOutput bool
	overrideConfig func(cfg *config.Config)
}

func main() {
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used when missing)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	envFile := flag.String("env", ".env", "Environment file with NODULESYNTH_* overrides")
	input := flag.String("input", "", "Radiograph stack (.mha) or single radiograph image")
	nodules := flag.String("nodules", "nodules.json", "Nodule box annotations")
	catalogPath := flag.String("catalog", "", "Patch catalog CSV (overrides patches.catalog)")
	patchDir := flag.String("patches", "", "Directory of CT nodule patches and masks (overrides patches.dir)")
	output := flag.String("output", "output.mha", "Output stack (.mha) or image for single slices")
	seed := flag.Uint64("seed", 0, "Random seed for patch selection (overrides selection.seed)")
	blender := flag.String("blender", "", "Blending backend: poisson or opencv (overrides blend.method)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save per-nodule intermediary images")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory for intermediary images (overrides output.intermediaryDir)")
	extractSlices := flag.Bool("extract-slices", false, "Save every output slice as PNG")
	slicesDir := flag.String("slices-dir", "synthesized_slices", "Directory to save extracted slices")
	previewDir := flag.String("preview", "", "Directory for annotated previews of the edited slices")
	debug := flag.Bool("debug", false, "Log every processing step")
	compress := flag.Bool("compress", true, "zlib compress .mha output")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := &options{
		configPath:     *configPath,
		envFile:        *envFile,
		input:          *input,
		nodules:        *nodules,
		output:         *output,
		extractSlices:  *extractSlices,
		slicesDir:      *slicesDir,
		previewDir:     *previewDir,
		debug:          *debug,
		compressOutput: *compress,
		overrideConfig: func(cfg *config.Config) {
			if *catalogPath != "" {
				cfg.Patches.Catalog = *catalogPath
			}
			if *patchDir != "" {
				cfg.Patches.Dir = *patchDir
			}
			if set["seed"] {
				cfg.Selection.Seed = *seed
			}
			if *blender != "" {
				cfg.Blend.Method = *blender
			}
			if set["save-intermediary"] {
				cfg.Output.SaveIntermediaryResults = *saveIntermediary
			}
			if *intermediaryDir != "" {
				cfg.Output.IntermediaryDir = *intermediaryDir
			}
		},
	}

	fmt.Println("================================")
	fmt.Println("NODULE SYNTHESIS IN CHEST RADIOGRAPHS")
	fmt.Println("CT nodule patches projected and blended into CXR slices")
	fmt.Println("================================")

	if err := run(opts); err != nil {
		log.Fatalf("Synthesis failed: %v", err)
	}
}

// loadConfig reads the YAML file, then the environment, then the flags
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(opts.envFile); err != nil {
		return nil, err
	}
	if opts.overrideConfig != nil {
		opts.overrideConfig(cfg)
	}
	return cfg, cfg.Validate()
}

func newCloner(cfg *config.Config) (blend.Cloner, error) {
	switch cfg.Blend.Method {
	case config.BlendOpenCV:
		return blend.NewOpenCVCloner()
	case config.BlendPoisson:
		return &blend.PoissonCloner{
			Omega:         cfg.Blend.Omega,
			MaxIterations: cfg.Blend.MaxIterations,
			Tolerance:     cfg.Blend.Tolerance,
		}, nil
	}
	return nil, fmt.Errorf("unknown blend method %q", cfg.Blend.Method)
}

func newLogger(cfg *config.Config, debug bool) logger.ILogger {
	level := logger.LogWarn
	if cfg.Output.Verbose {
		level = logger.LogInfo
	}
	if debug {
		level = logger.LogDebug
	}
	return logger.NewStdOutLogger(level)
}

func run(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	lg := newLogger(cfg, opts.debug)

	order, err := interpolation.ParseOrder(cfg.Resample.Order)
	if err != nil {
		return err
	}
	cloner, err := newCloner(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Step 1: Loading inputs...")
	stack, err := imageio.ReadVolume(opts.input)
	if err != nil {
		return err
	}
	anns, err := annotations.Load(opts.nodules)
	if err != nil {
		return err
	}
	entries, err := catalog.Load(cfg.Patches.Catalog)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d slices of %dx%d, %d nodule boxes, %d catalog patches\n",
		stack.Depth, stack.Height, stack.Width, len(anns), len(entries))

	selector := catalog.NewSelector(entries)
	selector.PrimaryDivisor = cfg.Selection.PrimaryDivisor
	selector.FallbackDivisor = cfg.Selection.FallbackDivisor

	params := &synthesis.Params{
		Selector: selector,
		Patches:  imageio.NewPatchStore(cfg.Patches.Dir, cfg.Patches.MaskFrom, cfg.Patches.MaskTo),
		Projector: &drr.Projector{
			Beta:      cfg.Projection.Beta,
			WindowMin: cfg.Projection.WindowMin,
			WindowMax: cfg.Projection.WindowMax,
			Axis:      cfg.Projection.Axis,
		},
		Cloner:                  cloner,
		Order:                   &order,
		ContrastFloor:           cfg.Contrast.Floor,
		Rand:                    rand.New(rand.NewPCG(cfg.Selection.Seed, cfg.Selection.Seed)),
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		Log:                     lg,
	}

	fmt.Printf("Step 2: Synthesizing nodules (%s blending, seed %d)...\n", cfg.Blend.Method, cfg.Selection.Seed)
	startTime := time.Now()
	out, report, err := synthesis.NewSynthesizer(params).Process(stack, anns)
	if err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	fmt.Println("Step 3: Writing output...")
	if dir := filepath.Dir(opts.output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := imageio.WriteVolume(opts.output, out, opts.compressOutput); err != nil {
		return err
	}

	fmt.Printf("\nSynthesis completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output saved to: %s\n\n", opts.output)
	printReport(report)

	viewer := visualization.NewViewer(out)
	if opts.extractSlices {
		fmt.Printf("\nSaving slices to: %s\n", opts.slicesDir)
		if err := viewer.SaveSliceSequence("z", opts.slicesDir); err != nil {
			log.Printf("Warning: Failed to save slices: %v", err)
		}
	}
	if opts.previewDir != "" {
		if err := savePreviews(viewer, anns, out.Depth, opts.previewDir); err != nil {
			log.Printf("Warning: Failed to save previews: %v", err)
		}
	}

	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- projection: normalized projection of the rescaled CT patch")
		fmt.Println("- nodule: projection after contrast matching")
		fmt.Println("- blended: slice after seamless blending")
	}
	return nil
}

func printReport(report *synthesis.Report) {
	fmt.Printf("Nodules (%d blended, %d skipped):\n", report.Blended(), report.Skipped())
	fmt.Printf("=======================================\n")
	for _, rec := range report.Nodules {
		status := "blended"
		if !rec.Blended {
			status = "skipped: " + rec.Failure
		}
		fmt.Printf("- slice %d box %v: %s (native %d px -> %d px, contrast %.3f) %s\n",
			rec.Slice, rec.Box, rec.Patch, rec.NativeDiameter, rec.RequiredDiameter, rec.Contrast, status)
	}
}

func savePreviews(viewer *visualization.Viewer, anns []models.NoduleAnnotation, depth int, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for slice, group := range annotations.BySlice(anns) {
		if slice >= depth {
			continue
		}
		boxes := make([]models.BoundingBox, len(group))
		for i, a := range group {
			boxes[i] = a.Box
		}
		filename := filepath.Join(dir, fmt.Sprintf("preview_%03d.png", slice))
		if err := viewer.SavePreview(slice, boxes, 2, filename); err != nil {
			return err
		}
	}
	return nil
}
