package relay

var subjects = []string{
	"algebra", "biology", "chemistry", "geometry", "history", "physics", "poetry", "calculus", "botany", "geology",
	"music", "drawing", "grammar", "spanish", "french", "latin", "civics", "economics", "robotics", "coding",
	"astronomy", "ecology", "anatomy", "logic", "ethics", "theatre", "painting", "statistics", "zoology", "geography",
}

var places = []string{
	"library", "lab", "studio", "hall", "garden", "atrium", "workshop", "gallery", "lounge", "courtyard",
	"observatory", "greenhouse", "auditorium", "campus", "annex", "attic", "cellar", "loft", "porch", "terrace",
}

var supplies = []string{
	"pencil", "crayon", "notebook", "eraser", "ruler", "compass", "globe", "chalk", "marker", "folder",
	"backpack", "stapler", "easel", "palette", "beaker", "magnet", "prism", "abacus", "atlas", "lantern",
	"telescope", "microscope", "calculator", "sketchbook", "flashcard", "bookmark", "inkwell", "quill", "scroll", "slate",
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "curious", "sparkly", "cheery", "clever", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "bright", "gentle", "brave", "calm", "swift",
	"quiet", "bouncy", "fuzzy", "plucky", "merry", "peppy", "bold", "eager", "witty", "nimble",
}
